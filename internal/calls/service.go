package calls

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gymcrm-calls/internal/phone"
	"gymcrm-calls/pkg/logger"
)

// PerPage is the size of one page of the call list.
const PerPage = 50

// Service ingests PBX call events and serves the staff call list.
//
// Event rules:
// - Calls placed from a staff extension are not recorded.
// - The first state event for an external id creates the record.
// - Later state events apply only when seq >= last_seq and the status is not terminal.
// - A summary event always overwrites status and duration of an existing record.
type Service struct {
	repo    Repository
	tenants TenantResolver

	// defaultDirectorID owns calls whose destination matches no gym.
	defaultDirectorID int64

	clock func() time.Time
}

func NewService(repo Repository, tenants TenantResolver, defaultDirectorID int64) *Service {
	return &Service{repo: repo, tenants: tenants, defaultDirectorID: defaultDirectorID, clock: time.Now}
}

// HandleState applies one call-state event.
func (s *Service) HandleState(ctx context.Context, ev StateEvent) (Outcome, error) {
	if err := validateState(ev); err != nil {
		return "", err
	}
	log := logger.From(ctx).With("external_id", ev.ExternalID)

	if ev.Internal() {
		log.Info("call from internal extension skipped", "from_extension", ev.FromExtension)
		return OutcomeIgnoredInternal, nil
	}

	to := phone.Normalize(ev.Destination())
	from := phone.Normalize(ev.From)

	directorID, err := s.resolveDirector(ctx, to)
	if err != nil {
		return "", err
	}
	clientID, err := s.resolveClient(ctx, directorID, from)
	if err != nil {
		return "", err
	}

	now := s.clock().UTC()
	fresh := Call{
		ExternalID: ev.ExternalID,
		PhoneFrom:  from,
		PhoneTo:    to,
		CallTime:   ev.OccurredAt.UTC(),
		Status:     ev.State,
		LastSeq:    ev.Seq,
		ClientID:   clientID,
		DirectorID: directorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var out Outcome
	err = s.repo.WithCallLock(ctx, ev.ExternalID, func(ctx context.Context, tx CallTx) error {
		cur, ok, err := tx.Find(ctx)
		if err != nil {
			return err
		}
		if !ok {
			created, err := tx.Insert(ctx, &fresh)
			if err != nil {
				return err
			}
			if created {
				out = OutcomeCreated
				log.Info("call record created", "call_id", fresh.ID, "status", fresh.Status, "seq", fresh.LastSeq, "director_id", directorID)
				return nil
			}
			// Lost the creation race; continue as an update of the winner's row.
			cur, ok, err = tx.Find(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("calls: record %q missing after insert conflict", ev.ExternalID)
			}
		}

		out = decideState(cur, ev.Seq)
		switch out {
		case OutcomeIgnoredStale:
			log.Info("stale call event ignored",
				"call_id", cur.ID, "current_status", cur.Status, "ignored_status", ev.State,
				"current_seq", cur.LastSeq, "ignored_seq", ev.Seq)
			return nil
		case OutcomeIgnoredTerminal:
			log.Info("call already finished, event ignored",
				"call_id", cur.ID, "current_status", cur.Status, "ignored_status", ev.State, "seq", ev.Seq)
			return nil
		}

		if err := tx.UpdateState(ctx, cur.ID, ev.State, ev.Seq, now); err != nil {
			return err
		}
		log.Info("call record updated", "call_id", cur.ID, "status", ev.State, "seq", ev.Seq)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("calls: apply state event: %w", err)
	}
	return out, nil
}

// HandleSummary applies the final summary of a call.
func (s *Service) HandleSummary(ctx context.Context, ev SummaryEvent) (Outcome, error) {
	if strings.TrimSpace(ev.ExternalID) == "" {
		return "", fmt.Errorf("%w: external id required", ErrInvalidEvent)
	}
	log := logger.From(ctx).With("external_id", ev.ExternalID)

	status := ev.Status()
	duration := ev.DurationSeconds()
	now := s.clock().UTC()

	var out Outcome
	err := s.repo.WithCallLock(ctx, ev.ExternalID, func(ctx context.Context, tx CallTx) error {
		cur, ok, err := tx.Find(ctx)
		if err != nil {
			return err
		}
		if !ok {
			out = OutcomeSummaryOrphan
			log.Warn("call summary for unknown call dropped")
			return nil
		}
		if err := tx.UpdateSummary(ctx, cur.ID, status, duration, now); err != nil {
			return err
		}
		out = OutcomeSummaryApplied
		log.Info("call summary applied", "call_id", cur.ID, "status", status, "duration", duration)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("calls: apply summary event: %w", err)
	}
	return out, nil
}

// List returns one page (1-based) of a director's calls, newest first.
func (s *Service) List(ctx context.Context, directorID int64, page int) (Page, error) {
	if directorID <= 0 {
		return Page{}, ErrInvalidArgument
	}
	if page < 1 {
		page = 1
	}
	rows, total, err := s.repo.List(ctx, directorID, PerPage, (page-1)*PerPage)
	if err != nil {
		return Page{}, err
	}
	last := (total + PerPage - 1) / PerPage
	if last < 1 {
		last = 1
	}
	return Page{Calls: rows, Page: page, PerPage: PerPage, Total: total, LastPage: last}, nil
}

// AssignClient sets or clears the client of one call.
func (s *Service) AssignClient(ctx context.Context, directorID, callID int64, clientID *int64) error {
	if directorID <= 0 || callID <= 0 {
		return ErrInvalidArgument
	}
	if clientID != nil {
		if err := s.requireClient(ctx, directorID, *clientID); err != nil {
			return err
		}
	}
	return s.repo.AssignClient(ctx, directorID, callID, clientID, s.clock().UTC())
}

// LinkClientByPhone attaches clientID to every call of the director that
// came from the same number as callID. Used after a client is created from a call.
func (s *Service) LinkClientByPhone(ctx context.Context, directorID, callID, clientID int64) (int64, error) {
	if directorID <= 0 || callID <= 0 || clientID <= 0 {
		return 0, ErrInvalidArgument
	}
	if err := s.requireClient(ctx, directorID, clientID); err != nil {
		return 0, err
	}
	n, err := s.repo.LinkClientByPhone(ctx, directorID, callID, clientID, s.clock().UTC())
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (s *Service) resolveDirector(ctx context.Context, to string) (int64, error) {
	if to == "" || s.tenants == nil {
		return s.defaultDirectorID, nil
	}
	id, ok, err := s.tenants.DirectorByPhone(ctx, to)
	if err != nil {
		return 0, fmt.Errorf("calls: resolve director: %w", err)
	}
	if !ok {
		logger.From(ctx).Info("no gym for destination, using default director", "to", to, "director_id", s.defaultDirectorID)
		return s.defaultDirectorID, nil
	}
	return id, nil
}

func (s *Service) resolveClient(ctx context.Context, directorID int64, from string) (*int64, error) {
	if from == "" || s.tenants == nil {
		return nil, nil
	}
	id, ok, err := s.tenants.ClientByPhone(ctx, directorID, from)
	if err != nil {
		return nil, fmt.Errorf("calls: resolve client: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (s *Service) requireClient(ctx context.Context, directorID, clientID int64) error {
	if s.tenants == nil {
		return ErrClientNotFound
	}
	ok, err := s.tenants.HasClient(ctx, directorID, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrClientNotFound
	}
	return nil
}

// decideState applies the sequencing rules to an existing record.
// An equal seq is accepted so provider retries of the latest event stay idempotent.
func decideState(cur Call, seq int64) Outcome {
	if seq < cur.LastSeq {
		return OutcomeIgnoredStale
	}
	if cur.Status.Terminal() {
		return OutcomeIgnoredTerminal
	}
	return OutcomeUpdated
}

func validateState(ev StateEvent) error {
	if strings.TrimSpace(ev.ExternalID) == "" {
		return fmt.Errorf("%w: external id required", ErrInvalidEvent)
	}
	if ev.Seq < 0 {
		return fmt.Errorf("%w: negative seq", ErrInvalidEvent)
	}
	if ev.State == "" && !ev.Internal() {
		return fmt.Errorf("%w: call state required", ErrInvalidEvent)
	}
	if ev.OccurredAt.IsZero() {
		return fmt.Errorf("%w: timestamp required", ErrInvalidEvent)
	}
	return nil
}
