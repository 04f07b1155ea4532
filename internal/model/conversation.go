// Package model defines data structures for the transcript sharing service.
package model

import (
	"time"
)

// ConversationRecord is the persisted form of a shared transcript. Records
// are written once and never updated.
type ConversationRecord struct {
	ID      string              `json:"id"`
	Content ConversationContent `json:"content"`
}

// ConversationContent holds the parsed transcript next to the original input.
type ConversationContent struct {
	Parsed   ParseResult          `json:"parsed"`
	Raw      string               `json:"raw"`
	Format   string               `json:"format"`
	Metadata ConversationMetadata `json:"metadata"`
}

// ConversationMetadata describes when and by whom a record was created.
type ConversationMetadata struct {
	Created        time.Time `json:"created"`
	Size           int       `json:"size"`
	ClientIdentity string    `json:"clientIdentity"`
}

// CreateConversationRequest is the JSON form of a submission.
type CreateConversationRequest struct {
	Content string `json:"content"`
}

// CreateConversationResponse is returned after a transcript is stored.
type CreateConversationResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	Format       Format `json:"format"`
	MessageCount int    `json:"messageCount"`
}
