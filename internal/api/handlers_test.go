package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-signalroom/internal/config"
	"github.com/npezzotti/go-signalroom/internal/database"
	"github.com/npezzotti/go-signalroom/internal/server"
	"github.com/npezzotti/go-signalroom/internal/stats"
	"github.com/npezzotti/go-signalroom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestStats() *stats.MockStatsUpdater {
	ms := &stats.MockStatsUpdater{}
	ms.On("Incr", mock.Anything).Maybe()
	ms.On("Decr", mock.Anything).Maybe()
	ms.On("Add", mock.Anything, mock.Anything).Maybe()
	return ms
}

func newTestApp(t *testing.T, db database.SignalRoomRepository, allowedOrigins []string) (*SignalRoomApp, *server.Coordinator) {
	t.Helper()

	coordinator, err := server.NewCoordinator(testutil.TestLogger(t), db, newTestStats())
	require.NoError(t, err)

	go coordinator.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		coordinator.Shutdown(ctx)
	})

	return &SignalRoomApp{
		log:            testutil.TestLogger(t),
		db:             db,
		coordinator:    coordinator,
		allowedOrigins: allowedOrigins,
	}, coordinator
}

func readMessage(t *testing.T, conn *websocket.Conn) *server.ServerMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg server.ServerMessage
	require.NoError(t, conn.ReadJSON(&msg), "expected a server message")
	return &msg
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		db := &database.MockSignalRoomRepository{}
		db.On("Ping").Return(nil)

		app := &SignalRoomApp{log: testutil.TestLogger(t), db: db}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		app.health(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "ok")
	})

	t.Run("store unavailable", func(t *testing.T) {
		db := &database.MockSignalRoomRepository{}
		db.On("Ping").Return(errors.New("db down"))

		app := &SignalRoomApp{log: testutil.TestLogger(t), db: db}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		app.health(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestNewSignalRoomApp(t *testing.T) {
	cfg, err := config.NewConfig("localhost:8000", "test.db", []string{"http://localhost:3000"}, time.Minute, time.Hour)
	require.NoError(t, err)

	mux := http.NewServeMux()
	app := NewSignalRoomApp(mux, testutil.TestLogger(t), nil, &database.MockSignalRoomRepository{}, cfg)
	require.NotNil(t, app)
	assert.Equal(t, "localhost:8000", app.mux.Addr)

	handler, pattern := mux.Handler(&http.Request{URL: &url.URL{Path: "/api/health"}, Method: http.MethodGet})
	assert.NotNil(t, handler, "expected handler for /api/health to be set")
	assert.Equal(t, "GET /api/health", pattern)

	_, pattern = mux.Handler(&http.Request{URL: &url.URL{Path: "/ws"}, Method: http.MethodGet})
	assert.Equal(t, "GET /ws", pattern, "expected websocket route to be registered")
}

func TestServeWs_RejectsDisallowedOrigin(t *testing.T) {
	db := &database.MockSignalRoomRepository{}
	app, _ := newTestApp(t, db, []string{"http://allowed.example.com"})

	srv := httptest.NewServer(http.HandlerFunc(app.serveWs))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{
		"Origin": []string{"http://evil.example.com"},
	})
	require.Error(t, err, "expected handshake to fail for disallowed origin")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestChatSession(t *testing.T) {
	db := &database.MockSignalRoomRepository{}
	app, _ := newTestApp(t, db, nil)

	srv := httptest.NewServer(http.HandlerFunc(app.serveWs))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	now := time.Now().UTC()
	room := database.Room{Id: 1, Code: "abc123", CreatedAt: now}

	// the deferred conn closes race coordinator shutdown
	db.On("MarkUserOffline", mock.Anything, mock.Anything).Return(true, nil).Maybe()

	// alice's join creates the room and her user row
	db.On("GetRoomByCode", "abc123").Return(database.Room{}, sql.ErrNoRows).Once()
	db.On("CreateRoom", "abc123").Return(room, nil).Once()
	db.On("GetUser", "abc123", "alice").Return(database.User{}, sql.ErrNoRows).Once()
	db.On("CreateUser", mock.MatchedBy(func(p database.CreateUserParams) bool {
		return p.RoomCode == "abc123" && p.Username == "alice"
	})).Return(database.User{Id: 1, RoomCode: "abc123", Username: "alice", IsOnline: true}, nil).Once()
	db.On("GetRoomUsers", "abc123").Return([]database.User{
		{Id: 1, Username: "alice", IsOnline: true},
	}, nil).Once()
	db.On("GetRoomMessages", "abc123").Return([]database.Message{}, nil).Once()
	db.On("GetRecentCalls", "abc123", mock.Anything).Return([]database.Call{}, nil).Once()

	connA, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "expected alice to connect")
	defer connA.Close()

	require.NoError(t, connA.WriteJSON(map[string]any{
		"id":   1,
		"join": map[string]string{"room_code": "abc123", "username": "alice"},
	}))

	snapshotA := readMessage(t, connA)
	require.NotNil(t, snapshotA.Snapshot, "expected alice's snapshot")
	assert.Equal(t, 1, snapshotA.Snapshot.UserId)
	assert.Empty(t, snapshotA.Snapshot.Messages)

	// bob's join reuses the room
	db.On("GetRoomByCode", "abc123").Return(room, nil).Once()
	db.On("GetUser", "abc123", "bob").Return(database.User{}, sql.ErrNoRows).Once()
	db.On("CreateUser", mock.MatchedBy(func(p database.CreateUserParams) bool {
		return p.RoomCode == "abc123" && p.Username == "bob"
	})).Return(database.User{Id: 2, RoomCode: "abc123", Username: "bob", IsOnline: true}, nil).Once()
	db.On("GetRoomUsers", "abc123").Return([]database.User{
		{Id: 1, Username: "alice", IsOnline: true},
		{Id: 2, Username: "bob", IsOnline: true},
	}, nil).Once()
	db.On("GetRoomMessages", "abc123").Return([]database.Message{}, nil).Once()
	db.On("GetRecentCalls", "abc123", mock.Anything).Return([]database.Call{}, nil).Once()

	connB, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "expected bob to connect")
	defer connB.Close()

	require.NoError(t, connB.WriteJSON(map[string]any{
		"id":   1,
		"join": map[string]string{"room_code": "abc123", "username": "bob"},
	}))

	snapshotB := readMessage(t, connB)
	require.NotNil(t, snapshotB.Snapshot, "expected bob's snapshot")
	assert.Equal(t, 2, snapshotB.Snapshot.UserId)
	require.Len(t, snapshotB.Snapshot.Members, 2)

	joinNotice := readMessage(t, connA)
	require.NotNil(t, joinNotice.UserJoined, "expected alice to see bob join")
	assert.Equal(t, "bob", joinNotice.UserJoined.User.Username)

	// alice's message is echoed to both from the durable row
	db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
		return p.RoomCode == "abc123" && p.UserId == 1 && p.Content == "hi"
	})).Return(database.Message{
		Id:        1,
		RoomCode:  "abc123",
		UserId:    1,
		Username:  "alice",
		Content:   "hi",
		Kind:      "text",
		CreatedAt: now,
	}, nil).Once()

	require.NoError(t, connA.WriteJSON(map[string]any{
		"id":      2,
		"publish": map[string]string{"content": "hi"},
	}))

	for _, conn := range []*websocket.Conn{connA, connB} {
		msg := readMessage(t, conn)
		require.NotNil(t, msg.Message, "expected new-message notice")
		assert.Equal(t, 1, msg.Message.Id)
		assert.Equal(t, "hi", msg.Message.Content)
		assert.Equal(t, "alice", msg.Message.Username)
	}

	// ending a call nobody started still notifies bob only
	db.On("EndActiveCall", "abc123", mock.AnythingOfType("time.Time")).Return(nil).Once()

	require.NoError(t, connA.WriteJSON(map[string]any{
		"id":       3,
		"call_end": map[string]string{},
	}))

	callEnded := readMessage(t, connB)
	require.NotNil(t, callEnded.CallEnded, "expected call-ended notice for bob")
	assert.Equal(t, 1, callEnded.CallEnded.UserId)
	assert.Equal(t, "alice", callEnded.CallEnded.Username)

	// heartbeat is acked to the sender only
	require.NoError(t, connB.WriteJSON(map[string]any{
		"id":        4,
		"heartbeat": map[string]string{},
	}))

	ack := readMessage(t, connB)
	require.NotNil(t, ack.Heartbeat, "expected heartbeat ack")
	assert.Equal(t, 4, ack.Id)

	db.AssertExpectations(t)
}
