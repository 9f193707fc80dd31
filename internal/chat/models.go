// Package chat stores the message history pushed by the messenger gateway
// (WhatsApp, Telegram, ...). Deliveries are replayed by the gateway, so
// ingestion is insert-or-ignore keyed on the gateway message id.
package chat

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Message is one entry of the gateway webhook "messages" array.
type Message struct {
	MessageID  string `json:"messageId"`
	ChannelID  string `json:"channelId"`
	ChatType   string `json:"chatType"`
	ChatID     string `json:"chatId"`
	DateTime   string `json:"dateTime"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Text       string `json:"text,omitempty"`
	ContentURI string `json:"contentUri,omitempty"`
	AuthorID   string `json:"authorId,omitempty"`
	AuthorName string `json:"authorName,omitempty"`
	IsEcho     bool   `json:"isEcho"`

	Contact *Contact `json:"contact,omitempty"`

	Error         json.RawMessage `json:"error,omitempty"`
	QuotedMessage json.RawMessage `json:"quotedMessage,omitempty"`
}

type Contact struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
}

// WebhookBody is the gateway delivery. Test pings carry no messages.
// Messages stay raw so one malformed entry cannot fail the whole batch.
type WebhookBody struct {
	Messages json.RawMessage `json:"messages"`
}

// DecodeMessages decodes the entries of a "messages" value one at a time and
// returns the usable ones plus how many were dropped. A value that is not an
// array yields no messages.
func DecodeMessages(raw json.RawMessage) ([]Message, int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, 0, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 0, fmt.Errorf("%w: messages is not an array", ErrInvalidMessage)
	}
	out := make([]Message, 0, len(items))
	dropped := 0
	for _, item := range items {
		var m Message
		if err := json.Unmarshal(item, &m); err != nil {
			dropped++
			continue
		}
		out = append(out, m)
	}
	return out, dropped, nil
}

// Record is the stored row of chat_message_history.
type Record struct {
	MessageID  string
	ChannelID  string
	ChatType   string
	ChatID     string
	SentAt     time.Time
	Type       string
	Status     string
	Text       *string
	ContentURI *string
	AuthorID   *string
	AuthorName *string
	IsEcho     bool

	ContactName     *string
	ContactUsername *string
	ContactPhone    *string

	Error         []byte
	QuotedMessage []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result summarizes one Ingest call.
type Result struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}
