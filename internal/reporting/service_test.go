package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymcrm-calls/internal/calls"
)

func intp(v int) *int { return &v }
func idp(v int64) *int64 { return &v }

func TestCallsSummary_DirectorIsolationAndTotals(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	repo := NewMemoryRepo()
	repo.Calls = []calls.Call{
		{ID: 1, DirectorID: 7, Status: calls.StatusAnswered, Duration: intp(30), ClientID: idp(42), CallTime: now},
		{ID: 2, DirectorID: 7, Status: calls.StatusAnswered, Duration: intp(90), CallTime: now},
		{ID: 3, DirectorID: 7, Status: calls.StatusMissed, Duration: intp(5), CallTime: now},
		{ID: 4, DirectorID: 7, Status: calls.StatusConnected, CallTime: now},
		{ID: 5, DirectorID: 8, Status: calls.StatusAnswered, Duration: intp(500), CallTime: now},
		{ID: 6, DirectorID: 7, Status: calls.StatusAnswered, Duration: intp(500), CallTime: now.Add(-48 * time.Hour)},
	}
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{
		DirectorID: 7,
		Range:      TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, out.TotalCalls)
	assert.Equal(t, 2, out.AnsweredCalls)
	assert.Equal(t, 1, out.MissedCalls)
	assert.Equal(t, 1, out.InProgressCalls)
	assert.Equal(t, 120, out.TotalDurationSeconds)
	assert.Equal(t, 60, out.AverageDurationSeconds)
	assert.Equal(t, 3, out.CallsWithoutClient)
	assert.Equal(t, 2, out.ByStatus[calls.StatusAnswered])
}

func TestCallsSummary_InvalidRequest(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now()

	_, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{Range: TimeRange{From: now, To: now.Add(time.Hour)}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CallsSummary(context.Background(), CallsSummaryRequest{DirectorID: 7, Range: TimeRange{From: now, To: now}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestPostgresRepo_ListCalls(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	from := time.Unix(1700000000, 0).UTC()
	to := from.Add(24 * time.Hour)
	mock.ExpectQuery(`FROM calls\s+WHERE director_id = \$1 AND call_time >= \$2 AND call_time < \$3`).
		WithArgs(int64(7), from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "duration", "client_id", "call_time"}).
			AddRow(int64(1), "answered", int64(30), nil, from).
			AddRow(int64(2), "missed", nil, int64(42), from))

	rows, err := NewPostgresRepo(db).ListCalls(context.Background(), 7, from, to)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, calls.StatusAnswered, rows[0].Status)
	assert.Equal(t, 30, *rows[0].Duration)
	assert.Nil(t, rows[0].ClientID)
	assert.Nil(t, rows[1].Duration)
	assert.Equal(t, int64(42), *rows[1].ClientID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
