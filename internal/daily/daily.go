// Package daily implements C9, the daily challenge scorer: one
// server-recomputed submission per account per calendar day in a
// configured IANA timezone, plus the top-N/rank read path (spec §4.9).
// Grounded on the same pure-metrics-then-persist shape C5's finalize.go
// uses, generalised from a per-match scorer to a per-day one.
package daily

import (
	"context"
	"time"

	"github.com/velotype/velotype/internal/apperr"
	"github.com/velotype/velotype/internal/metrics"
	"github.com/velotype/velotype/internal/model"
	"github.com/velotype/velotype/internal/storage"
	"github.com/velotype/velotype/internal/textgen"
)

const (
	dailyTextLength = 200
	dailySeedPrefix = "veloxtype-daily-"
)

// Service computes and persists daily challenge attempts against a
// gateway, deriving the reset day from a configured IANA zone.
type Service struct {
	gateway  storage.Gateway
	location *time.Location
	clock    func() time.Time
}

// NewService builds a Service bound to the given reset timezone. zoneName
// must already have been validated by config.AppConfig.Validate at
// startup; a bad zone here is a programmer error, not a runtime one.
func NewService(gateway storage.Gateway, zoneName string) (*Service, error) {
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, err
	}
	return &Service{gateway: gateway, location: loc, clock: time.Now}, nil
}

// Today returns the current reset-day key (YYYY-MM-DD in the configured
// zone) and its authoritative text.
func (s *Service) Today() (day, text string) {
	day = s.clock().In(s.location).Format("2006-01-02")
	text = textgen.Generate(dailySeedPrefix+day, dailyTextLength, textgen.Medium, false)
	return day, text
}

// Submission is one client-reported daily attempt, same shape as a
// match-round result frame minus the opponent-facing fields.
type Submission struct {
	Typed           string
	ElapsedMs       int
	Samples         []int
	TotalErrors     *int
	TotalKeystrokes *int
}

// Submit recomputes the submission's metrics against today's
// authoritative text and stores exactly one row per (userId, day); a
// second submission the same day returns apperr.ErrDuplicateDaily (spec
// §7, §9 scenario S7).
func (s *Service) Submit(ctx context.Context, userID string, sub Submission) (model.DailyScore, error) {
	day, text := s.Today()

	guarded := metrics.ApplyPlausibilityGuard(sub.Typed, sub.ElapsedMs, metrics.MaxCharsPerSecondDaily, len(text))
	round := metrics.Compute(metrics.Submission{
		TargetText:      text,
		Typed:           guarded,
		ElapsedMs:       sub.ElapsedMs,
		Samples:         sub.Samples,
		TotalErrors:     sub.TotalErrors,
		TotalKeystrokes: sub.TotalKeystrokes,
	})

	errs := 0
	if sub.TotalErrors != nil {
		errs = *sub.TotalErrors
	}

	score := model.DailyScore{
		UserID:       userID,
		Date:         day,
		WPM:          round.WPM,
		RawWPM:       round.RawWPM,
		Accuracy:     round.Accuracy,
		Consistency:  round.Consistency,
		Score:        round.PerformanceScore,
		CorrectChars: round.CorrectChars,
		TotalTyped:   len(guarded),
		Errors:       errs,
		Seed:         dailySeedPrefix + day,
		CreatedAt:    s.clock(),
	}

	if err := s.gateway.InsertDailyScore(ctx, score); err != nil {
		if apperr.Is(err, apperr.KindDuplicateDaily) {
			return model.DailyScore{}, apperr.ErrDuplicateDaily
		}
		return model.DailyScore{}, err
	}
	return score, nil
}

// Leaderboard returns the top-N daily scores and the given user's rank
// for the current reset day (a zero rank with ok=false means the user has
// not submitted today).
func (s *Service) Leaderboard(ctx context.Context, userID string, limit int) (top []model.DailyScore, rank int, ok bool, err error) {
	day, _ := s.Today()
	top, err = s.gateway.TopDailyScores(ctx, day, limit)
	if err != nil {
		return nil, 0, false, err
	}
	rank, ok, err = s.gateway.DailyRank(ctx, day, userID)
	if err != nil {
		return nil, 0, false, err
	}
	return top, rank, ok, nil
}
