package database

import (
	"time"
)

func (db *SqliteSignalRoomRepository) GetRoomByCode(code string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, code, created_at FROM rooms WHERE code = ? LIMIT 1",
		code,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Code,
		&room.CreatedAt,
	)

	return room, err
}

func (db *SqliteSignalRoomRepository) CreateRoom(code string) (Room, error) {
	createdAt := time.Now().UTC()
	res, err := db.conn.Exec(
		"INSERT INTO rooms (code, created_at) VALUES (?, ?)",
		code,
		createdAt,
	)
	if err != nil {
		return Room{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Room{}, err
	}

	return Room{
		Id:        int(id),
		Code:      code,
		CreatedAt: createdAt,
	}, nil
}

func (db *SqliteSignalRoomRepository) GetUser(roomCode, username string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_code, username, connection_id, joined_at, is_online, last_seen FROM users "+
			"WHERE room_code = ? AND username = ? LIMIT 1",
		roomCode,
		username,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.RoomCode,
		&user.Username,
		&user.ConnectionId,
		&user.JoinedAt,
		&user.IsOnline,
		&user.LastSeen,
	)

	return user, err
}

func (db *SqliteSignalRoomRepository) CreateUser(params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	res, err := db.conn.Exec(
		"INSERT INTO users (room_code, username, connection_id, joined_at, is_online, last_seen) "+
			"VALUES (?, ?, ?, ?, 1, ?)",
		params.RoomCode,
		params.Username,
		params.ConnectionId,
		now,
		now,
	)
	if err != nil {
		return User{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}

	return User{
		Id:           int(id),
		RoomCode:     params.RoomCode,
		Username:     params.Username,
		ConnectionId: params.ConnectionId,
		JoinedAt:     now,
		IsOnline:     true,
		LastSeen:     now,
	}, nil
}

func (db *SqliteSignalRoomRepository) ReconnectUser(userId int, connectionId string) error {
	_, err := db.conn.Exec(
		"UPDATE users SET connection_id = ?, is_online = 1, last_seen = ? WHERE id = ?",
		connectionId,
		time.Now().UTC(),
		userId,
	)

	return err
}

// MarkUserOffline flips is_online only while connectionId is still the user's
// live connection, so a stale disconnect never clobbers a fresher reconnect.
func (db *SqliteSignalRoomRepository) MarkUserOffline(userId int, connectionId string) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE users SET is_online = 0, last_seen = ? WHERE id = ? AND connection_id = ?",
		time.Now().UTC(),
		userId,
		connectionId,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (db *SqliteSignalRoomRepository) GetRoomUsers(roomCode string) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_code, username, connection_id, joined_at, is_online, last_seen FROM users "+
			"WHERE room_code = ? ORDER BY is_online DESC, username ASC",
		roomCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		var user User
		if err = rows.Scan(
			&user.Id,
			&user.RoomCode,
			&user.Username,
			&user.ConnectionId,
			&user.JoinedAt,
			&user.IsOnline,
			&user.LastSeen,
		); err != nil {
			return nil, err
		}

		users = append(users, user)
	}

	return users, rows.Err()
}

func (db *SqliteSignalRoomRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	createdAt := time.Now().UTC()
	res, err := db.conn.Exec(
		"INSERT INTO messages (room_code, user_id, username, content, kind, created_at) "+
			"VALUES (?, ?, ?, ?, ?, ?)",
		params.RoomCode,
		params.UserId,
		params.Username,
		params.Content,
		params.Kind,
		createdAt,
	)
	if err != nil {
		return Message{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Message{}, err
	}

	return Message{
		Id:        int(id),
		RoomCode:  params.RoomCode,
		UserId:    params.UserId,
		Username:  params.Username,
		Content:   params.Content,
		Kind:      params.Kind,
		CreatedAt: createdAt,
	}, nil
}

func (db *SqliteSignalRoomRepository) GetRoomMessages(roomCode string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_code, user_id, username, content, kind, created_at FROM messages "+
			"WHERE room_code = ? ORDER BY created_at ASC, id ASC",
		roomCode,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(
			&msg.Id,
			&msg.RoomCode,
			&msg.UserId,
			&msg.Username,
			&msg.Content,
			&msg.Kind,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *SqliteSignalRoomRepository) CreateCall(params CreateCallParams) (Call, error) {
	startedAt := time.Now().UTC()
	res, err := db.conn.Exec(
		"INSERT INTO calls (room_code, call_type, initiator_id, initiator_name, status, started_at) "+
			"VALUES (?, ?, ?, ?, ?, ?)",
		params.RoomCode,
		params.CallType,
		params.InitiatorId,
		params.InitiatorName,
		CallStatusActive,
		startedAt,
	)
	if err != nil {
		return Call{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Call{}, err
	}

	return Call{
		Id:            int(id),
		RoomCode:      params.RoomCode,
		CallType:      params.CallType,
		InitiatorId:   params.InitiatorId,
		InitiatorName: params.InitiatorName,
		Status:        CallStatusActive,
		StartedAt:     startedAt,
	}, nil
}

// EndActiveCall closes the most recent active call row for the room.
// A room with no active call is a no-op.
func (db *SqliteSignalRoomRepository) EndActiveCall(roomCode string, endedAt time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE calls SET status = ?, ended_at = ? WHERE id = "+
			"(SELECT id FROM calls WHERE room_code = ? AND status = ? ORDER BY id DESC LIMIT 1)",
		CallStatusEnded,
		endedAt,
		roomCode,
		CallStatusActive,
	)

	return err
}

func (db *SqliteSignalRoomRepository) GetRecentCalls(roomCode string, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.conn.Query(
		"SELECT id, room_code, call_type, initiator_id, initiator_name, status, started_at, ended_at FROM calls "+
			"WHERE room_code = ? ORDER BY started_at DESC, id DESC LIMIT ?",
		roomCode,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls = make([]Call, 0, limit)
	for rows.Next() {
		var call Call
		if err = rows.Scan(
			&call.Id,
			&call.RoomCode,
			&call.CallType,
			&call.InitiatorId,
			&call.InitiatorName,
			&call.Status,
			&call.StartedAt,
			&call.EndedAt,
		); err != nil {
			return nil, err
		}

		calls = append(calls, call)
	}

	return calls, rows.Err()
}

func (db *SqliteSignalRoomRepository) DeleteStaleUsers(cutoff time.Time) (int64, error) {
	res, err := db.conn.Exec(
		"DELETE FROM users WHERE is_online = 0 AND last_seen < ?",
		cutoff,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
