package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/npezzotti/go-signalroom/internal/types"
)

const DefaultMessageKind = "text"

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join      *Join      `json:"join,omitempty"`
	Publish   *Publish   `json:"publish,omitempty"`
	Typing    *Typing    `json:"typing,omitempty"`
	Offer     *Offer     `json:"offer,omitempty"`
	Answer    *Answer    `json:"answer,omitempty"`
	Candidate *Candidate `json:"candidate,omitempty"`
	CallStart *CallStart `json:"call_start,omitempty"`
	CallEnd   *CallEnd   `json:"call_end,omitempty"`
	Heartbeat *Heartbeat `json:"heartbeat,omitempty"`

	// disconnect is injected by the read pump when the transport drops,
	// it is never parsed off the wire.
	disconnect bool
	client     *Client
}

type Join struct {
	RoomCode string `json:"room_code"`
	Username string `json:"username"`
}

type Publish struct {
	Content string `json:"content"`
	Kind    string `json:"kind,omitempty"`
}

type Typing struct {
	Active bool `json:"active"`
}

type Offer struct {
	SDP      json.RawMessage `json:"sdp"`
	CallType string          `json:"call_type"`
}

type Answer struct {
	SDP json.RawMessage `json:"sdp"`
}

type Candidate struct {
	Candidate json.RawMessage `json:"candidate"`
}

type CallStart struct {
	CallType string `json:"call_type"`
}

type CallEnd struct{}

type Heartbeat struct{}

type ServerMessage struct {
	BaseMessage
	Response   *Response           `json:"response,omitempty"`
	Snapshot   *types.RoomSnapshot `json:"snapshot,omitempty"`
	UserJoined *UserJoined         `json:"user_joined,omitempty"`
	UserLeft   *UserLeft           `json:"user_left,omitempty"`
	Message    *types.Message      `json:"message,omitempty"`
	Typing     *TypingNotice       `json:"typing,omitempty"`
	Offer      *OfferNotice        `json:"offer,omitempty"`
	Answer     *AnswerNotice       `json:"answer,omitempty"`
	Candidate  *CandidateNotice    `json:"candidate,omitempty"`
	CallEnded  *CallEnded          `json:"call_ended,omitempty"`
	Heartbeat  *Heartbeat          `json:"heartbeat,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type UserJoined struct {
	User    types.User   `json:"user"`
	Members []types.User `json:"members"`
}

type UserLeft struct {
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
}

type TypingNotice struct {
	UserId   int    `json:"user_id"`
	Username string `json:"username,omitempty"`
	Active   bool   `json:"active"`
}

type OfferNotice struct {
	SDP      json.RawMessage `json:"sdp"`
	CallType string          `json:"call_type"`
	UserId   int             `json:"user_id"`
	Username string          `json:"username"`
}

type AnswerNotice struct {
	SDP    json.RawMessage `json:"sdp"`
	UserId int             `json:"user_id"`
}

type CandidateNotice struct {
	Candidate json.RawMessage `json:"candidate"`
	UserId    int             `json:"user_id"`
}

type CallEnded struct {
	UserId   int    `json:"user_id"`
	Username string `json:"username"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func HeartbeatAck(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Heartbeat: &Heartbeat{},
	}
}

func ErrNotInRoom(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "not in a room",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
