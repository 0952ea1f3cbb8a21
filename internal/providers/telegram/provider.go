package telegram

import "context"

// Provider delivers staff messages to a Telegram chat.
type Provider interface {
	PostMessage(ctx context.Context, chatID string, message string) error
	GetMe(ctx context.Context) (Bot, error)
	GetUpdates(ctx context.Context) ([]Update, error)
}

type Bot struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type Chat struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// Chat returns the chat the update belongs to, if any.
func (u Update) Chat() (Chat, bool) {
	switch {
	case u.Message != nil:
		return u.Message.Chat, true
	case u.EditedMessage != nil:
		return u.EditedMessage.Chat, true
	default:
		return Chat{}, false
	}
}

// NoOpProvider accepts every message and reports no bot identity.
type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, chatID string, message string) error {
	return nil
}

func (p *NoOpProvider) GetMe(ctx context.Context) (Bot, error) {
	return Bot{}, ErrNotConfigured
}

func (p *NoOpProvider) GetUpdates(ctx context.Context) ([]Update, error) {
	return nil, ErrNotConfigured
}
