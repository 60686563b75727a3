// Package protocol defines the JSON frames exchanged over a client
// connection and the close codes the server uses to end one.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Close codes. Codes in the 4000 range are application-defined.
const (
	CloseNormal          = 1000
	CloseAuthTimeout     = 4000
	CloseTooManyAttempts = 4001
	CloseKicked          = 4002
	CloseBanned          = 4003
	CloseVersionMismatch = 4004
)

// Inbound frame types.
const (
	TypeRegister       = "register"
	TypeLogin          = "login"
	TypeVersion        = "version"
	TypeVersionShort   = "v"
	TypeCommand        = "command"
	TypeFriendRequest  = "sendFriendRequest"
	TypeRespondRequest = "respondFriendRequest"
	TypeRemoveFriend   = "removeFriend"
	TypeBlock          = "block"
	TypeUnblock        = "unblock"
	TypeMessage        = "message"
	TypeLegacyMsg      = "msg"
	TypeChatHistory    = "chatHistory"
	TypeQueryUsernames = "queryUsernames"
)

// Outbound frame types.
const (
	OutInfo             = "info"
	OutSys              = "sys"
	OutError            = "error"
	OutLogin            = "login"
	OutRegister         = "register"
	OutToken            = "token"
	OutVersion          = "version"
	OutFriendRequest    = "friend_request"
	OutFriendAdded      = "friend_added"
	OutFriendRemoved    = "friend_removed"
	OutBlacklistAdded   = "blacklist_added"
	OutBlacklistRemoved = "blacklist_removed"
	OutMessage          = "message"
	OutLegacyMsg        = "msg"
	OutMessageSent      = "message_sent"
	OutChatHistory      = "chat_history"
	OutUsernames        = "usernames"
)

var ErrMalformed = errors.New("malformed frame")

// Inbound is the union of every client frame. Data is the legacy carrier for
// command text, version strings and broadcast content.
type Inbound struct {
	Type       string   `json:"type"`
	Username   string   `json:"username,omitempty"`
	Password   string   `json:"password,omitempty"`
	Token      string   `json:"token,omitempty"`
	Version    string   `json:"version,omitempty"`
	Text       string   `json:"text,omitempty"`
	Content    string   `json:"content,omitempty"`
	Data       string   `json:"data,omitempty"`
	Identifier string   `json:"identifier,omitempty"`
	FromID     string   `json:"fromId,omitempty"`
	Accept     bool     `json:"accept,omitempty"`
	FriendID   string   `json:"friendId,omitempty"`
	UserID     string   `json:"userId,omitempty"`
	ToID       string   `json:"toId,omitempty"`
	IDs        []string `json:"ids,omitempty"`
}

// Decode parses a text frame. Invalid JSON and a missing type both yield
// ErrMalformed.
func Decode(b []byte) (*Inbound, error) {
	in := &Inbound{}
	if err := json.Unmarshal(b, in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if strings.TrimSpace(in.Type) == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return in, nil
}

func (in *Inbound) CommandText() string {
	return firstNonEmpty(in.Text, in.Data)
}

func (in *Inbound) VersionString() string {
	return firstNonEmpty(in.Version, in.Data)
}

// BroadcastText returns the payload of a channel-less message.
func (in *Inbound) BroadcastText() string {
	return firstNonEmpty(in.Content, in.Data)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Contact is an identity reference in outbound payloads.
type Contact struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// HistoryEntry is one stored message in a chat_history frame.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	FromID    string    `json:"fromId"`
	ToID      string    `json:"toId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Outbound is the union of every server frame. Empty fields are omitted, so
// clients treat a missing list as empty.
type Outbound struct {
	Type       string            `json:"type"`
	Message    string            `json:"message,omitempty"`
	Data       string            `json:"data,omitempty"`
	Success    *bool             `json:"success,omitempty"`
	UserID     string            `json:"userId,omitempty"`
	Username   string            `json:"username,omitempty"`
	Permission int               `json:"permission,omitempty"`
	Friends    []Contact         `json:"friends,omitempty"`
	Requests   []Contact         `json:"requests,omitempty"`
	Blacklist  []Contact         `json:"blacklist,omitempty"`
	Usernames  map[string]string `json:"usernames,omitempty"`
	FromID     string            `json:"fromId,omitempty"`
	FromName   string            `json:"fromName,omitempty"`
	FriendID   string            `json:"friendId,omitempty"`
	FriendName string            `json:"friendName,omitempty"`
	ToID       string            `json:"toId,omitempty"`
	Text       string            `json:"text,omitempty"`
	Content    string            `json:"content,omitempty"`
	Timestamp  *time.Time        `json:"timestamp,omitempty"`
	History    []HistoryEntry    `json:"history,omitempty"`
}

func Error(message string) *Outbound {
	return &Outbound{Type: OutError, Message: message}
}

func Sys(text string) *Outbound {
	return &Outbound{Type: OutSys, Data: text}
}

func Info(text string) *Outbound {
	return &Outbound{Type: OutInfo, Message: text}
}

// Result builds a login or register reply.
func Result(typ string, success bool, message string) *Outbound {
	return &Outbound{Type: typ, Success: &success, Message: message}
}
