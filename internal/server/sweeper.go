package server

import (
	"log"
	"time"

	"github.com/npezzotti/go-signalroom/internal/database"
	"github.com/npezzotti/go-signalroom/internal/stats"
)

// Sweeper periodically deletes user rows that have been offline longer
// than the retention window. Sweeps run synchronously inside the loop,
// so two sweeps can never overlap.
type Sweeper struct {
	log       *log.Logger
	db        database.SignalRoomRepository
	stats     stats.StatsProvider
	interval  time.Duration
	retention time.Duration
	stop      chan struct{}
	done      chan struct{}
}

func NewSweeper(logger *log.Logger, db database.SignalRoomRepository, sp stats.StatsProvider, interval, retention time.Duration) *Sweeper {
	return &Sweeper{
		log:       logger,
		db:        db,
		stats:     sp,
		interval:  interval,
		retention: retention,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (s *Sweeper) Run() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer func() {
			ticker.Stop()
			close(s.done)
		}()

		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Sweep deletes every user offline since before the retention cutoff and
// returns the number of rows removed. Errors do not stop the schedule.
func (s *Sweeper) Sweep() int64 {
	cutoff := time.Now().UTC().Add(-s.retention)

	n, err := s.db.DeleteStaleUsers(cutoff)
	if err != nil {
		s.log.Println("sweep stale users:", err)
		return 0
	}

	if n > 0 {
		s.log.Printf("reclaimed %d stale user(s)", n)
		s.stats.Add("UsersReclaimed", int(n))
	}

	return n
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
