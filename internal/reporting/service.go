package reporting

import (
	"context"
	"errors"
	"time"

	"gymcrm-calls/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
// Implementations must filter by director.
type Repository interface {
	ListCalls(ctx context.Context, directorID int64, from, to time.Time) ([]calls.Call, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.DirectorID <= 0 {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.DirectorID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{DirectorID: req.DirectorID, Range: req.Range, ByStatus: map[calls.Status]int{}}
	for _, c := range rows {
		out.TotalCalls++
		out.ByStatus[c.Status]++
		if c.ClientID == nil {
			out.CallsWithoutClient++
		}
		switch c.Status {
		case calls.StatusAnswered:
			out.AnsweredCalls++
			if c.Duration != nil {
				out.TotalDurationSeconds += *c.Duration
			}
		case calls.StatusMissed:
			out.MissedCalls++
		default:
			out.InProgressCalls++
		}
	}
	if out.AnsweredCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.AnsweredCalls
	}
	return out, nil
}
