package database

import (
	"database/sql"
	"time"
)

const (
	CallStatusActive = "active"
	CallStatusEnded  = "ended"
)

type Room struct {
	Id        int
	Code      string
	CreatedAt time.Time
}

type User struct {
	Id           int
	RoomCode     string
	Username     string
	ConnectionId string
	JoinedAt     time.Time
	IsOnline     bool
	LastSeen     time.Time
}

type Message struct {
	Id        int
	RoomCode  string
	UserId    int
	Username  string
	Content   string
	Kind      string
	CreatedAt time.Time
}

type Call struct {
	Id            int
	RoomCode      string
	CallType      string
	InitiatorId   int
	InitiatorName string
	Status        string
	StartedAt     time.Time
	EndedAt       sql.NullTime
}

type CreateUserParams struct {
	RoomCode     string
	Username     string
	ConnectionId string
}

type CreateMessageParams struct {
	RoomCode string
	UserId   int
	Username string
	Content  string
	Kind     string
}

type CreateCallParams struct {
	RoomCode      string
	CallType      string
	InitiatorId   int
	InitiatorName string
}
