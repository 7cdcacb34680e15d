package repo

import (
	"context"

	"github.com/butlerbot/relay/internal/biz/domain"
)

// MessageRepo is the conversation store interface
// Append-only log of messages keyed by chat, safe for concurrent writers
type MessageRepo interface {
	// Append stores a message and returns its sequence id
	Append(ctx context.Context, chatID, authorID, authorName, text string) (int64, error)

	// Fetch returns the most recent limit messages of a chat in ascending sequence order
	Fetch(ctx context.Context, chatID string, limit int) ([]domain.Message, error)

	Close() error
}

// DeliveryRepo hands outbound Bot text to the transport
type DeliveryRepo interface {
	Deliver(ctx context.Context, chatID, text string) error
}

// MemberRepo resolves chat member display names on the transport side
type MemberRepo interface {
	GetChatMembers(ctx context.Context, chatID string) ([]domain.Member, error)
}
