package types

import (
	"time"
)

type User struct {
	Id       int       `json:"id"`
	Username string    `json:"username"`
	IsOnline bool      `json:"is_online"`
	JoinedAt time.Time `json:"joined_at,omitempty"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

type Message struct {
	Id        int       `json:"id"`
	RoomCode  string    `json:"room_code"`
	UserId    int       `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

type Call struct {
	Id            int        `json:"id"`
	RoomCode      string     `json:"room_code"`
	CallType      string     `json:"call_type"`
	InitiatorId   int        `json:"initiator_id"`
	InitiatorName string     `json:"initiator_name"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// RoomSnapshot is the authoritative room state sent to a connection
// once its join completes.
type RoomSnapshot struct {
	RoomCode string    `json:"room_code"`
	UserId   int       `json:"user_id"`
	Members  []User    `json:"members"`
	Messages []Message `json:"messages"`
	Calls    []Call    `json:"calls"`
}
