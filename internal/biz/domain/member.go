package domain

import "fmt"

// Member represents a chat participant (value object)
type Member struct {
	UserID string
	Name   string
}

// FormatDisplay formats the addressing prefix used in transcripts
func (m *Member) FormatDisplay() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.UserID)
}

// SelfPrefix is the prefix the model sometimes echoes in front of its own replies
func SelfPrefix(botName string) string {
	bot := Member{UserID: BotID, Name: botName}
	return bot.FormatDisplay() + ": "
}
