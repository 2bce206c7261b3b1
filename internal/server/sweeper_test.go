package server

import (
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/go-signalroom/internal/database"
	"github.com/npezzotti/go-signalroom/internal/stats"
	"github.com/npezzotti/go-signalroom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestSweep(t *testing.T) {
	t.Run("deletes users offline past the retention window", func(t *testing.T) {
		db := &database.MockSignalRoomRepository{}
		ms := &stats.MockStatsUpdater{}
		ms.On("Add", "UsersReclaimed", 3)

		s := NewSweeper(testutil.TestLogger(t), db, ms, time.Minute, time.Hour)

		db.On("DeleteStaleUsers", mock.MatchedBy(func(cutoff time.Time) bool {
			// cutoff should be roughly an hour ago
			return time.Since(cutoff) > 59*time.Minute && time.Since(cutoff) < 61*time.Minute
		})).Return(int64(3), nil)

		n := s.Sweep()
		assert.Equal(t, int64(3), n, "expected 3 reclaimed users")

		db.AssertExpectations(t)
		ms.AssertExpectations(t)
	})

	t.Run("nothing to reclaim", func(t *testing.T) {
		db := &database.MockSignalRoomRepository{}
		ms := &stats.MockStatsUpdater{}

		s := NewSweeper(testutil.TestLogger(t), db, ms, time.Minute, time.Hour)

		db.On("DeleteStaleUsers", mock.AnythingOfType("time.Time")).Return(int64(0), nil)

		n := s.Sweep()
		assert.Equal(t, int64(0), n)
		ms.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
	})

	t.Run("store error is swallowed", func(t *testing.T) {
		db := &database.MockSignalRoomRepository{}
		ms := &stats.MockStatsUpdater{}

		s := NewSweeper(testutil.TestLogger(t), db, ms, time.Minute, time.Hour)

		db.On("DeleteStaleUsers", mock.AnythingOfType("time.Time")).Return(int64(0), errors.New("db down"))

		n := s.Sweep()
		assert.Equal(t, int64(0), n, "expected zero on sweep failure")
	})
}

func TestSweeper_RunStop(t *testing.T) {
	db := &database.MockSignalRoomRepository{}
	ms := &stats.MockStatsUpdater{}

	db.On("DeleteStaleUsers", mock.AnythingOfType("time.Time")).Return(int64(0), nil)

	s := NewSweeper(testutil.TestLogger(t), db, ms, 10*time.Millisecond, time.Hour)
	s.Run()

	time.Sleep(35 * time.Millisecond)
	s.Stop()

	db.AssertCalled(t, "DeleteStaleUsers", mock.AnythingOfType("time.Time"))

	select {
	case <-s.done:
	default:
		t.Error("expected sweeper loop to exit after Stop")
	}
}
