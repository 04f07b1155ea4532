package middleware

import (
	"errors"

	"github.com/capitalize-ai/chatshare/internal/idgen"
)

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if !idgen.Valid(id) {
		return errors.New("invalid conversation ID format")
	}
	return nil
}
