package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gymcrm-calls/internal/metrics"
	"gymcrm-calls/pkg/logger"
)

var ErrInvalidMessage = errors.New("chat: invalid message")

// Repository persists chat records.
type Repository interface {
	// InsertIgnore stores every record whose message id is new, in one
	// transaction, and returns how many were inserted.
	InsertIgnore(ctx context.Context, recs []Record) (int, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Ingest converts and stores a batch. Messages that cannot be converted are
// logged and skipped; they never fail the batch.
func (s *Service) Ingest(ctx context.Context, msgs []Message) (Result, error) {
	log := logger.From(ctx)
	now := s.clock().UTC()

	var res Result
	recs := make([]Record, 0, len(msgs))
	for _, m := range msgs {
		rec, err := toRecord(m, now)
		if err != nil {
			log.Error("chat message skipped", "message_id", m.MessageID, "date_time", m.DateTime, "err", err)
			res.Skipped++
			continue
		}
		recs = append(recs, rec)
	}

	if len(recs) > 0 {
		n, err := s.repo.InsertIgnore(ctx, recs)
		if err != nil {
			return Result{}, fmt.Errorf("chat: store messages: %w", err)
		}
		res.Inserted = n
		res.Duplicates = len(recs) - n
	}

	metrics.ChatMessages.WithLabelValues("inserted").Add(float64(res.Inserted))
	metrics.ChatMessages.WithLabelValues("duplicate").Add(float64(res.Duplicates))
	metrics.ChatMessages.WithLabelValues("skipped").Add(float64(res.Skipped))
	log.Info("chat messages ingested", "inserted", res.Inserted, "duplicates", res.Duplicates, "skipped", res.Skipped)
	return res, nil
}

func toRecord(m Message, now time.Time) (Record, error) {
	if strings.TrimSpace(m.MessageID) == "" {
		return Record{}, fmt.Errorf("%w: messageId required", ErrInvalidMessage)
	}
	sent, err := parseTime(m.DateTime)
	if err != nil {
		return Record{}, err
	}

	r := Record{
		MessageID:  m.MessageID,
		ChannelID:  m.ChannelID,
		ChatType:   m.ChatType,
		ChatID:     m.ChatID,
		SentAt:     sent,
		Type:       m.Type,
		Status:     m.Status,
		Text:       optional(m.Text),
		ContentURI: optional(m.ContentURI),
		AuthorID:   optional(m.AuthorID),
		AuthorName: optional(m.AuthorName),
		IsEcho:     m.IsEcho,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if m.Contact != nil {
		r.ContactName = optional(m.Contact.Name)
		r.ContactUsername = optional(m.Contact.Username)
		r.ContactPhone = optional(m.Contact.Phone)
	}
	if len(m.Error) > 0 && string(m.Error) != "null" {
		r.Error = []byte(m.Error)
	}
	if len(m.QuotedMessage) > 0 && string(m.QuotedMessage) != "null" {
		r.QuotedMessage = []byte(m.QuotedMessage)
	}
	return r, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable dateTime %q", ErrInvalidMessage, s)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
