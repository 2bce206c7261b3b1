package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-signalroom/internal/config"
	"github.com/npezzotti/go-signalroom/internal/database"
	"github.com/npezzotti/go-signalroom/internal/server"
)

type SignalRoomApp struct {
	log            *log.Logger
	db             database.SignalRoomRepository
	mux            *http.Server
	coordinator    *server.Coordinator
	allowedOrigins []string
}

func NewSignalRoomApp(mux *http.ServeMux, logger *log.Logger, coordinator *server.Coordinator, db database.SignalRoomRepository, cfg *config.Config) *SignalRoomApp {
	s := &SignalRoomApp{
		log:            logger,
		db:             db,
		coordinator:    coordinator,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /api/health", s.health)
	mux.Handle("GET /ws", http.HandlerFunc(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *SignalRoomApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SignalRoomApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
