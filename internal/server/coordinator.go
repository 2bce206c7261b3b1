package server

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/npezzotti/go-signalroom/internal/database"
	"github.com/npezzotti/go-signalroom/internal/stats"
	"github.com/npezzotti/go-signalroom/internal/types"
)

const recentCallLimit = 10

// Coordinator owns the presence table and call tracker and handles every
// inbound connection event on a single loop, so room state is only ever
// mutated from one goroutine. The store's UNIQUE constraints remain the
// backstop for concurrent create-if-absent races.
type Coordinator struct {
	log          *log.Logger
	db           database.SignalRoomRepository
	stats        stats.StatsProvider
	presence     *PresenceTable
	calls        *CallTracker
	clients      map[*Client]struct{}
	eventChan    chan *ClientMessage
	registerChan chan *Client
	stop         chan struct{}
	done         chan struct{}
}

func NewCoordinator(logger *log.Logger, db database.SignalRoomRepository, sp stats.StatsProvider) (*Coordinator, error) {
	return &Coordinator{
		log:          logger,
		db:           db,
		stats:        sp,
		presence:     NewPresenceTable(),
		calls:        NewCallTracker(),
		clients:      make(map[*Client]struct{}),
		eventChan:    make(chan *ClientMessage, 256),
		registerChan: make(chan *Client),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}, nil
}

func (c *Coordinator) Run() {
	for {
		select {
		case client := <-c.registerChan:
			c.log.Printf("adding connection %q", client.connectionId)
			c.clients[client] = struct{}{}
			c.stats.Incr("ActiveConnections")
		case msg := <-c.eventChan:
			c.dispatch(msg)
		case <-c.stop:
			c.log.Println("shutting down connections")
			for client := range c.clients {
				client.stopClient()
			}

			close(c.done)
			return
		}
	}
}

func (c *Coordinator) RegisterClient(client *Client) {
	c.registerChan <- client
}

func (c *Coordinator) Shutdown(ctx context.Context) error {
	close(c.stop)

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) dispatch(msg *ClientMessage) {
	switch {
	case msg.disconnect:
		c.handleDisconnect(msg)
	case msg.Join != nil:
		c.handleJoin(msg)
	case msg.Publish != nil:
		c.handlePublish(msg)
	case msg.Typing != nil:
		c.handleTyping(msg)
	case msg.Offer != nil:
		c.handleOffer(msg)
	case msg.Answer != nil:
		c.handleAnswer(msg)
	case msg.Candidate != nil:
		c.handleCandidate(msg)
	case msg.CallStart != nil:
		c.handleCallStart(msg)
	case msg.CallEnd != nil:
		c.handleCallEnd(msg)
	case msg.Heartbeat != nil:
		msg.client.queueMessage(HeartbeatAck(msg.Id))
	default:
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// broadcast delivers msg to every live connection in roomCode, excluding
// skipConnectionId when non-empty.
func (c *Coordinator) broadcast(roomCode, skipConnectionId string, msg *ServerMessage) {
	for _, entry := range c.presence.Room(roomCode, skipConnectionId) {
		entry.client.queueMessage(msg)
	}
}

func (c *Coordinator) handleJoin(msg *ClientMessage) {
	join := msg.Join
	client := msg.client

	if join.RoomCode == "" || join.Username == "" {
		client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	room, err := c.db.GetRoomByCode(join.RoomCode)
	if errors.Is(err, sql.ErrNoRows) {
		room, err = c.db.CreateRoom(join.RoomCode)
		if database.IsUniqueConstraint(err) {
			// a concurrent join created the room first
			room, err = c.db.GetRoomByCode(join.RoomCode)
		}
	}
	if err != nil {
		c.log.Printf("join room %q: %v", join.RoomCode, err)
		client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	user, err := c.db.GetUser(room.Code, join.Username)
	if errors.Is(err, sql.ErrNoRows) {
		user, err = c.db.CreateUser(database.CreateUserParams{
			RoomCode:     room.Code,
			Username:     join.Username,
			ConnectionId: client.connectionId,
		})
		if database.IsUniqueConstraint(err) {
			user, err = c.db.GetUser(room.Code, join.Username)
			if err == nil {
				err = c.db.ReconnectUser(user.Id, client.connectionId)
			}
		}
	} else if err == nil {
		err = c.db.ReconnectUser(user.Id, client.connectionId)
	}
	if err != nil {
		c.log.Printf("join user %q in room %q: %v", join.Username, join.RoomCode, err)
		client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	roomWasEmpty := c.presence.RoomLen(room.Code) == 0

	c.presence.Add(&PresenceEntry{
		ConnectionId: client.connectionId,
		RoomCode:     room.Code,
		UserId:       user.Id,
		Username:     user.Username,
		client:       client,
	})

	snapshot, err := c.buildSnapshot(room.Code, user.Id)
	if err != nil {
		c.log.Printf("snapshot for room %q: %v", room.Code, err)
		// no partial presence registration is left behind
		c.presence.Remove(client.connectionId)
		client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	if roomWasEmpty {
		c.stats.Incr("ActiveRooms")
	}

	client.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: Now(),
		},
		Snapshot: snapshot,
	})

	c.broadcast(room.Code, client.connectionId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		UserJoined: &UserJoined{
			User: types.User{
				Id:       user.Id,
				Username: user.Username,
				IsOnline: true,
			},
			Members: snapshot.Members,
		},
	})

	c.log.Printf("user %q joined room %q on connection %q", user.Username, room.Code, client.connectionId)
}

func (c *Coordinator) buildSnapshot(roomCode string, userId int) (*types.RoomSnapshot, error) {
	dbUsers, err := c.db.GetRoomUsers(roomCode)
	if err != nil {
		return nil, err
	}

	dbMessages, err := c.db.GetRoomMessages(roomCode)
	if err != nil {
		return nil, err
	}

	dbCalls, err := c.db.GetRecentCalls(roomCode, recentCallLimit)
	if err != nil {
		return nil, err
	}

	members := make([]types.User, len(dbUsers))
	for i, u := range dbUsers {
		members[i] = types.User{
			Id:       u.Id,
			Username: u.Username,
			IsOnline: u.IsOnline,
			JoinedAt: u.JoinedAt,
			LastSeen: u.LastSeen,
		}
	}

	messages := make([]types.Message, len(dbMessages))
	for i, m := range dbMessages {
		messages[i] = types.Message{
			Id:        m.Id,
			RoomCode:  m.RoomCode,
			UserId:    m.UserId,
			Username:  m.Username,
			Content:   m.Content,
			Kind:      m.Kind,
			Timestamp: m.CreatedAt,
		}
	}

	calls := make([]types.Call, len(dbCalls))
	for i, call := range dbCalls {
		calls[i] = types.Call{
			Id:            call.Id,
			RoomCode:      call.RoomCode,
			CallType:      call.CallType,
			InitiatorId:   call.InitiatorId,
			InitiatorName: call.InitiatorName,
			Status:        call.Status,
			StartedAt:     call.StartedAt,
		}
		if call.EndedAt.Valid {
			endedAt := call.EndedAt.Time
			calls[i].EndedAt = &endedAt
		}
	}

	return &types.RoomSnapshot{
		RoomCode: roomCode,
		UserId:   userId,
		Members:  members,
		Messages: messages,
		Calls:    calls,
	}, nil
}

func (c *Coordinator) handlePublish(msg *ClientMessage) {
	entry, ok := c.presence.Get(msg.client.connectionId)
	if !ok {
		msg.client.queueMessage(ErrNotInRoom(msg.Id))
		return
	}

	kind := msg.Publish.Kind
	if kind == "" {
		kind = DefaultMessageKind
	}

	dbMsg, err := c.db.CreateMessage(database.CreateMessageParams{
		RoomCode: entry.RoomCode,
		UserId:   entry.UserId,
		Username: entry.Username,
		Content:  msg.Publish.Content,
		Kind:     kind,
	})
	if err != nil {
		c.log.Println("error saving message:", err)
		msg.client.queueMessage(ErrInternalError(msg.Id))
		return
	}

	c.stats.Incr("MessagesSent")

	// the sender receives the same authoritative echo as everyone else,
	// so the broadcast includes the acting connection
	c.broadcast(entry.RoomCode, "", &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        msg.Id,
			Timestamp: Now(),
		},
		Message: &types.Message{
			Id:        dbMsg.Id,
			RoomCode:  dbMsg.RoomCode,
			UserId:    dbMsg.UserId,
			Username:  dbMsg.Username,
			Content:   dbMsg.Content,
			Kind:      dbMsg.Kind,
			Timestamp: dbMsg.CreatedAt,
		},
	})
}

func (c *Coordinator) handleTyping(msg *ClientMessage) {
	entry, ok := c.presence.Get(msg.client.connectionId)
	if !ok {
		return
	}

	notice := &TypingNotice{
		UserId: entry.UserId,
		Active: msg.Typing.Active,
	}
	if msg.Typing.Active {
		notice.Username = entry.Username
	}

	c.broadcast(entry.RoomCode, entry.ConnectionId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Typing: notice,
	})
}

func (c *Coordinator) handleOffer(msg *ClientMessage) {
	entry, ok := c.presence.Get(msg.client.connectionId)
	if !ok {
		return
	}

	c.calls.Set(entry.RoomCode, ActiveCall{
		CallType:    msg.Offer.CallType,
		InitiatorId: entry.UserId,
	})

	c.broadcast(entry.RoomCode, entry.ConnectionId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Offer: &OfferNotice{
			SDP:      msg.Offer.SDP,
			CallType: msg.Offer.CallType,
			UserId:   entry.UserId,
			Username: entry.Username,
		},
	})
}

func (c *Coordinator) handleAnswer(msg *ClientMessage) {
	entry, ok := c.presence.Get(msg.client.connectionId)
	if !ok {
		return
	}

	c.broadcast(entry.RoomCode, entry.ConnectionId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Answer: &AnswerNotice{
			SDP:    msg.Answer.SDP,
			UserId: entry.UserId,
		},
	})
}

func (c *Coordinator) handleCandidate(msg *ClientMessage) {
	entry, ok := c.presence.Get(msg.client.connectionId)
	if !ok {
		return
	}

	c.broadcast(entry.RoomCode, entry.ConnectionId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Candidate: &CandidateNotice{
			Candidate: msg.Candidate.Candidate,
			UserId:    entry.UserId,
		},
	})
}

func (c *Coordinator) handleCallStart(msg *ClientMessage) {
	entry, ok := c.presence.Get(msg.client.connectionId)
	if !ok {
		return
	}

	// best-effort bookkeeping, the call proceeds whether or not the row lands
	if _, err := c.db.CreateCall(database.CreateCallParams{
		RoomCode:      entry.RoomCode,
		CallType:      msg.CallStart.CallType,
		InitiatorId:   entry.UserId,
		InitiatorName: entry.Username,
	}); err != nil {
		c.log.Printf("record call in room %q: %v", entry.RoomCode, err)
		return
	}

	c.stats.Incr("CallsStarted")
}

func (c *Coordinator) handleCallEnd(msg *ClientMessage) {
	entry, ok := c.presence.Get(msg.client.connectionId)
	if !ok {
		return
	}

	c.calls.Clear(entry.RoomCode)

	if err := c.db.EndActiveCall(entry.RoomCode, Now()); err != nil {
		c.log.Printf("end call in room %q: %v", entry.RoomCode, err)
	}

	c.broadcast(entry.RoomCode, entry.ConnectionId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		CallEnded: &CallEnded{
			UserId:   entry.UserId,
			Username: entry.Username,
		},
	})
}

func (c *Coordinator) handleDisconnect(msg *ClientMessage) {
	client := msg.client

	c.log.Printf("removing connection %q", client.connectionId)
	if _, ok := c.clients[client]; ok {
		delete(c.clients, client)
		c.stats.Decr("ActiveConnections")
	}

	entry, ok := c.presence.Get(client.connectionId)
	if !ok {
		return
	}

	marked, err := c.db.MarkUserOffline(entry.UserId, client.connectionId)
	if err != nil {
		c.log.Printf("mark user %d offline: %v", entry.UserId, err)
	} else if !marked {
		c.log.Printf("user %d already reconnected on another connection", entry.UserId)
	}

	c.broadcast(entry.RoomCode, entry.ConnectionId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		UserLeft: &UserLeft{
			UserId:   entry.UserId,
			Username: entry.Username,
		},
	})

	// the user may have disconnected mid-typing
	c.broadcast(entry.RoomCode, entry.ConnectionId, &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Typing: &TypingNotice{
			UserId: entry.UserId,
			Active: false,
		},
	})

	c.presence.Remove(client.connectionId)

	if c.presence.RoomLen(entry.RoomCode) == 0 {
		c.stats.Decr("ActiveRooms")
	}
}
