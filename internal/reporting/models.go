package reporting

import (
	"time"

	"gymcrm-calls/internal/calls"
)

// TimeRange is half-open: From inclusive, To exclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics for one director.
type CallsSummaryRequest struct {
	DirectorID int64     `json:"director_id"`
	Range      TimeRange `json:"range"`
}

type CallsSummary struct {
	DirectorID int64     `json:"director_id"`
	Range      TimeRange `json:"range"`

	TotalCalls      int                  `json:"total_calls"`
	AnsweredCalls   int                  `json:"answered_calls"`
	MissedCalls     int                  `json:"missed_calls"`
	InProgressCalls int                  `json:"in_progress_calls"`
	ByStatus        map[calls.Status]int `json:"by_status"`

	// Durations cover answered calls only.
	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// CallsWithoutClient are calls from numbers no client is linked to yet.
	CallsWithoutClient int `json:"calls_without_client"`
}
