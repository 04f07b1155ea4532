package model

import (
	"time"
)

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeCreated EventType = "created"
)

// ConversationEvent is published after a record has been stored.
type ConversationEvent struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Type           EventType `json:"type"`
	Format         Format    `json:"format"`
	MessageCount   int       `json:"message_count"`
	Size           int       `json:"size"`
	CreatedAt      time.Time `json:"created_at"`
}
