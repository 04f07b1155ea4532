package model

import "strings"

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleUnknown   Role = "unknown"
)

// Message is one canonical turn of a transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RoleFromSource maps a JSON export's "from" field to a role. The second
// return value is false for labels outside the synonym set.
func RoleFromSource(from string) (Role, bool) {
	switch from {
	case "human", "user":
		return RoleUser, true
	case "gpt", "assistant":
		return RoleAssistant, true
	default:
		return RoleUnknown, false
	}
}

// RoleFromLabel resolves a free-text speaker label. Anything mentioning
// "user" or "human" is the user; everything else is the assistant.
func RoleFromLabel(label string) Role {
	l := strings.ToLower(label)
	if strings.Contains(l, "user") || strings.Contains(l, "human") {
		return RoleUser
	}
	return RoleAssistant
}
