package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles a session may hold.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one conversational turn. Messages are immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ListMessagesResponse is the response for listing a session's recent messages.
type ListMessagesResponse struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}
