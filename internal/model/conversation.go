// Package model defines data structures for the FAQ bot.
package model

import (
	"time"
)

// Session holds the recent message history of one conversation.
type Session struct {
	ID           string    `json:"id"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	copy(c.Messages, s.Messages)
	return &c
}

// CreateSessionResponse is returned when a session is opened explicitly.
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}
