package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	StatusSending  MessageStatus = "sending"
	StatusSent     MessageStatus = "sent"
	StatusRetrying MessageStatus = "retrying"
	StatusFailed   MessageStatus = "failed"
)

// Message is one entry of a room timeline. A message is either confirmed
// (ServerID set, Status sent) or still in flight / failed; two messages with
// the same ClientID are the same logical message at different lifecycle
// stages, never two timeline entries.
type Message struct {
	ServerID            string              `json:"server_id,omitempty"`
	ClientID            string              `json:"client_id"`
	RoomID              uuid.UUID           `json:"room_id"`
	SenderID            string              `json:"sender_id"`
	Content             string              `json:"content"`
	AttachmentURLs      []string            `json:"attachment_urls,omitempty"`
	Reactions           map[string][]string `json:"reactions,omitempty"`
	ServerTimestamp     *time.Time          `json:"server_timestamp,omitempty"`
	ClientTimestamp     time.Time           `json:"client_timestamp"`
	Status              MessageStatus       `json:"status"`
	IsTimestampFallback bool                `json:"is_timestamp_fallback,omitempty"`
}

// Persisted reports whether the message has been confirmed by the backend.
func (m *Message) Persisted() bool {
	return m.ServerID != "" && m.ServerTimestamp != nil
}

// Clone returns a deep copy. Timeline commits never mutate entries in place,
// so every field change goes through a copy.
func (m *Message) Clone() *Message {
	c := *m
	if m.AttachmentURLs != nil {
		c.AttachmentURLs = append([]string(nil), m.AttachmentURLs...)
	}
	if m.Reactions != nil {
		c.Reactions = make(map[string][]string, len(m.Reactions))
		for emoji, senders := range m.Reactions {
			c.Reactions[emoji] = append([]string(nil), senders...)
		}
	}
	if m.ServerTimestamp != nil {
		ts := *m.ServerTimestamp
		c.ServerTimestamp = &ts
	}
	return &c
}

// Cursor is a room's latest known real server position: timestamp plus id of
// the newest genuinely server-timestamped message observed so far.
type Cursor struct {
	Timestamp time.Time `json:"timestamp"`
	ServerID  string    `json:"server_id"`
}

// Before reports whether c precedes other under the persisted-message
// ordering (timestamp, then id).
func (c Cursor) Before(other Cursor) bool {
	if !c.Timestamp.Equal(other.Timestamp) {
		return c.Timestamp.Before(other.Timestamp)
	}
	return c.ServerID < other.ServerID
}
