package audit

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// Append-only: there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.DirectorID <= 0 || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogClientAssigned records a manual change of a call's client. A nil
// clientID means the link was cleared.
func (s *Service) LogClientAssigned(ctx context.Context, a Actor, directorID, callID int64, clientID *int64) error {
	msg := "client assigned to call"
	if clientID == nil {
		msg = "client cleared from call"
	}
	return s.Append(ctx, Event{
		DirectorID:  directorID,
		Type:        EventTypeCallClientAssigned,
		ActorUserID: a.UserID,
		ActorRole:   a.Role,
		IPAddress:   a.IP,
		CallID:      &callID,
		ClientID:    clientID,
		Message:     msg,
	})
}

// LogClientLinked records a bulk relink of every call from one number.
func (s *Service) LogClientLinked(ctx context.Context, a Actor, directorID, callID, clientID, updated int64) error {
	meta, err := json.Marshal(map[string]int64{"updated_calls": updated})
	if err != nil {
		return err
	}
	return s.Append(ctx, Event{
		DirectorID:  directorID,
		Type:        EventTypeClientCallsLinked,
		ActorUserID: a.UserID,
		ActorRole:   a.Role,
		IPAddress:   a.IP,
		CallID:      &callID,
		ClientID:    &clientID,
		Message:     "client linked to calls by phone",
		Metadata:    string(meta),
	})
}
