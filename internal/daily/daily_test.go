package daily

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velotype/velotype/internal/apperr"
	"github.com/velotype/velotype/internal/storage"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSecondSubmissionSameDayIsDuplicate(t *testing.T) {
	gateway := storage.NewMemoryGateway()
	svc, err := NewService(gateway, "America/New_York")
	require.NoError(t, err)
	svc.clock = fixedClock(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))

	errs, keystrokes := 0, 100
	sub := Submission{Typed: "x", ElapsedMs: 30000, TotalErrors: &errs, TotalKeystrokes: &keystrokes}

	_, err = svc.Submit(context.Background(), "alice", sub)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), "alice", sub)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDuplicateDaily))
}

func TestDifferentUsersSameDayBothSucceed(t *testing.T) {
	gateway := storage.NewMemoryGateway()
	svc, err := NewService(gateway, "America/New_York")
	require.NoError(t, err)
	svc.clock = fixedClock(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))

	errs, keystrokes := 0, 100
	sub := Submission{Typed: "x", ElapsedMs: 30000, TotalErrors: &errs, TotalKeystrokes: &keystrokes}

	_, err = svc.Submit(context.Background(), "alice", sub)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), "bob", sub)
	require.NoError(t, err)

	top, rank, ok, err := svc.Leaderboard(context.Background(), "alice", 10)
	require.NoError(t, err)
	assert.Len(t, top, 2)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, rank, 1)
}

func TestCrossingDayBoundaryAllowsNewSubmission(t *testing.T) {
	gateway := storage.NewMemoryGateway()
	svc, err := NewService(gateway, "America/New_York")
	require.NoError(t, err)

	day1 := time.Date(2026, 8, 1, 3, 59, 0, 0, time.UTC) // 2026-07-31 23:59 EDT
	day2 := day1.Add(2 * time.Hour)                      // 2026-08-01 01:59 EDT

	errs, keystrokes := 0, 100
	sub := Submission{Typed: "x", ElapsedMs: 30000, TotalErrors: &errs, TotalKeystrokes: &keystrokes}

	svc.clock = fixedClock(day1)
	_, err = svc.Submit(context.Background(), "alice", sub)
	require.NoError(t, err)

	svc.clock = fixedClock(day2)
	_, err = svc.Submit(context.Background(), "alice", sub)
	require.NoError(t, err)
}

func TestInvalidTimezoneRejectedAtConstruction(t *testing.T) {
	_, err := NewService(storage.NewMemoryGateway(), "Not/AZone")
	assert.Error(t, err)
}
