package domain

import "fmt"

// ConversationKey identifies a conversation: a chat paired with the user who started
// the current burst of messages. It is the unit of debouncing and serialization.
type ConversationKey struct {
	ChatID string
	UserID string
}

// String returns a compact form suitable for logs
func (k ConversationKey) String() string {
	return fmt.Sprintf("%s/%s", k.ChatID, k.UserID)
}

// Valid reports whether both parts of the key are set
func (k ConversationKey) Valid() bool {
	return k.ChatID != "" && k.UserID != ""
}
