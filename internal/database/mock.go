package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockSignalRoomRepository struct {
	mock.Mock
}

func (m *MockSignalRoomRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockSignalRoomRepository) GetRoomByCode(code string) (Room, error) {
	args := m.Called(code)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockSignalRoomRepository) CreateRoom(code string) (Room, error) {
	args := m.Called(code)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockSignalRoomRepository) GetUser(roomCode, username string) (User, error) {
	args := m.Called(roomCode, username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSignalRoomRepository) CreateUser(params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSignalRoomRepository) ReconnectUser(userId int, connectionId string) error {
	args := m.Called(userId, connectionId)
	return args.Error(0)
}
func (m *MockSignalRoomRepository) MarkUserOffline(userId int, connectionId string) (bool, error) {
	args := m.Called(userId, connectionId)
	return args.Bool(0), args.Error(1)
}
func (m *MockSignalRoomRepository) GetRoomUsers(roomCode string) ([]User, error) {
	args := m.Called(roomCode)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockSignalRoomRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSignalRoomRepository) GetRoomMessages(roomCode string) ([]Message, error) {
	args := m.Called(roomCode)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockSignalRoomRepository) CreateCall(params CreateCallParams) (Call, error) {
	args := m.Called(params)
	return args.Get(0).(Call), args.Error(1)
}
func (m *MockSignalRoomRepository) EndActiveCall(roomCode string, endedAt time.Time) error {
	args := m.Called(roomCode, endedAt)
	return args.Error(0)
}
func (m *MockSignalRoomRepository) GetRecentCalls(roomCode string, limit int) ([]Call, error) {
	args := m.Called(roomCode, limit)
	return args.Get(0).([]Call), args.Error(1)
}
func (m *MockSignalRoomRepository) DeleteStaleUsers(cutoff time.Time) (int64, error) {
	args := m.Called(cutoff)
	return args.Get(0).(int64), args.Error(1)
}
