package server

import (
	"testing"
	"time"

	"github.com/npezzotti/go-signalroom/internal/database"
	"github.com/npezzotti/go-signalroom/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueMessage(t *testing.T) {
	c := &Client{
		log:  testutil.TestLogger(t),
		send: make(chan *ServerMessage, 1),
	}

	assert.True(t, c.queueMessage(HeartbeatAck(1)), "expected message to be queued")
	assert.False(t, c.queueMessage(HeartbeatAck(2)), "expected queue to reject when channel is full")

	msg := <-c.send
	assert.Equal(t, 1, msg.Id, "expected the first message to remain queued")
}

func TestCleanup_SendsDisconnect(t *testing.T) {
	db := &database.MockSignalRoomRepository{}
	coordinator := newTestCoordinator(t, db)
	client := newTestClient(t, coordinator, "conn-1")

	client.cleanup()

	select {
	case msg := <-coordinator.eventChan:
		assert.True(t, msg.disconnect, "expected a disconnect event")
		assert.Equal(t, client, msg.client)
	default:
		t.Fatal("expected disconnect event on the coordinator's event channel")
	}
}

func TestCleanup_DuringShutdown(t *testing.T) {
	db := &database.MockSignalRoomRepository{}
	coordinator := newTestCoordinator(t, db)
	client := newTestClient(t, coordinator, "conn-1")

	// nobody is draining the event channel once the coordinator stops
	coordinator.eventChan = make(chan *ClientMessage)
	close(coordinator.stop)

	done := make(chan struct{})
	go func() {
		client.cleanup()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup blocked after coordinator shutdown")
	}
}

func TestNewClient(t *testing.T) {
	db := &database.MockSignalRoomRepository{}
	coordinator := newTestCoordinator(t, db)

	client := NewClient("conn-1", nil, coordinator, testutil.TestLogger(t))
	require.NotNil(t, client)
	assert.Equal(t, "conn-1", client.ConnectionId())
	assert.NotNil(t, client.send)
	assert.NotNil(t, client.stop)
}
