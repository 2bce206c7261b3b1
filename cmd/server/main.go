package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-signalroom/internal/api"
	"github.com/npezzotti/go-signalroom/internal/config"
	"github.com/npezzotti/go-signalroom/internal/database"
	"github.com/npezzotti/go-signalroom/internal/server"
	"github.com/npezzotti/go-signalroom/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr             string
	dbPath           string
	allowedOrigins   stringSliceFlag
	sweepInterval    time.Duration
	offlineRetention time.Duration
)

func main() {
	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dbPath, "db-path", "signalroom.db", "path to the sqlite database file")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for cross-origin connections")
	flag.DurationVar(&sweepInterval, "sweep-interval", config.DefaultSweepInterval, "how often to reclaim stale offline users")
	flag.DurationVar(&offlineRetention, "offline-retention", config.DefaultOfflineRetention, "how long offline users are retained before reclamation")
	flag.Parse()

	logger := log.New(os.Stderr, "[signalroom] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dbPath, allowedOrigins, sweepInterval, offlineRetention)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewSqliteSignalRoomRepository(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)
	for _, metric := range []string{"ActiveConnections", "ActiveRooms", "MessagesSent", "CallsStarted", "UsersReclaimed"} {
		statsUpdater.RegisterMetric(metric)
	}

	coordinator, err := server.NewCoordinator(logger, dbConn, statsUpdater)
	if err != nil {
		logger.Fatal("new coordinator:", err)
	}

	srv := api.NewSignalRoomApp(mux, logger, coordinator, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go coordinator.Run()

	sweeper := server.NewSweeper(logger, dbConn, statsUpdater, cfg.SweepInterval, cfg.OfflineRetention)
	sweeper.Run()
	defer sweeper.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down coordinator...")
	if err := coordinator.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("coordinator shutdown:", err)
	}

	logger.Println("shutdown complete")
}
