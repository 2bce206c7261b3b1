package database

import "time"

type SignalRoomRepository interface {
	Ping() error
	GetRoomByCode(code string) (Room, error)
	CreateRoom(code string) (Room, error)
	GetUser(roomCode, username string) (User, error)
	CreateUser(params CreateUserParams) (User, error)
	ReconnectUser(userId int, connectionId string) error
	MarkUserOffline(userId int, connectionId string) (bool, error)
	GetRoomUsers(roomCode string) ([]User, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetRoomMessages(roomCode string) ([]Message, error)
	CreateCall(params CreateCallParams) (Call, error)
	EndActiveCall(roomCode string, endedAt time.Time) error
	GetRecentCalls(roomCode string, limit int) ([]Call, error)
	DeleteStaleUsers(cutoff time.Time) (int64, error)
}
