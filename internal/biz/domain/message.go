package domain

import (
	"fmt"
	"time"
)

// BotID is the reserved author identity for Bot-authored messages.
const BotID = "0"

// NoReplyToken is the sentinel the model returns when the Bot chooses not to reply.
// It is shared between the system instruction and the scheduler's suppression check.
const NoReplyToken = "-"

// Message represents a stored chat message entity
type Message struct {
	Seq        int64 // Assigned by the store, strictly increasing per chat
	ChatID     string
	AuthorID   string
	AuthorName string
	Text       string
	CreatedAt  time.Time
}

// IsBotAuthored reports whether the message was written by the Bot
func (m *Message) IsBotAuthored() bool {
	return m.AuthorID == BotID
}

// Author returns the message author as a member value
func (m *Message) Author() Member {
	return Member{UserID: m.AuthorID, Name: m.AuthorName}
}

// Render formats the message the way it is presented to the model: "name (id): text"
func (m *Message) Render() string {
	author := m.Author()
	return fmt.Sprintf("%s: %s", author.FormatDisplay(), m.Text)
}

// Inbound is a message event delivered by a transport
type Inbound struct {
	ChatID   string
	UserID   string
	Username string
	Text     string
}

// Key returns the conversation key the event belongs to
func (in Inbound) Key() ConversationKey {
	return ConversationKey{ChatID: in.ChatID, UserID: in.UserID}
}
