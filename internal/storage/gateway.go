// Package storage implements C7, the persistence gateway: the sole writer
// to durable tables. Every multi-row write is exposed as one atomic
// operation so callers never need to reason about partial commits.
package storage

import (
	"context"

	"github.com/velotype/velotype/internal/model"
)

// RatingUpdate is one row of an applyRatings batch.
type RatingUpdate struct {
	UserID         string
	NewRating      int
	NewCompetitive *int // nil clears competitive rating
}

// PlacementIncrement is one row of an incrementPlacement batch.
type PlacementIncrement struct {
	UserID   string
	NewCount int
}

// Gateway is the full persistence surface described in spec §4.7. Every
// method that touches more than one row commits as a single transaction.
// Implementations must be safe to stub with an in-memory double for tests.
type Gateway interface {
	// CreateMatch persists a pending Match and its two MatchPlayer shells.
	CreateMatch(ctx context.Context, m model.Match, playerA, playerB model.MatchPlayer) error

	// RecordMatch commits final per-player metrics and the Match status
	// update as one transaction.
	RecordMatch(ctx context.Context, matchID string, playerA, playerB model.MatchPlayer, status model.MatchStatus) error

	// ApplyRatings commits a batch of rating/competitive-rating updates as
	// one transaction.
	ApplyRatings(ctx context.Context, updates []RatingUpdate) error

	// IncrementPlacement commits a batch of placement-counter updates as
	// one transaction.
	IncrementPlacement(ctx context.Context, updates []PlacementIncrement) error

	// UpdatePlacementMMR sets a just-placed player's initial rating as one
	// transaction, following IncrementPlacement in the same match
	// finalisation.
	UpdatePlacementMMR(ctx context.Context, userID string, initialRating int) error

	// GetRating reads a player's current Rating row.
	GetRating(ctx context.Context, userID string) (model.Rating, error)

	// CountRatingAbove returns the number of players with a strictly
	// higher main rating, for the Apex leaderboard-position check.
	CountRatingAbove(ctx context.Context, rating int) (int, error)

	// RecentMatchPlayers returns a user's most recent MatchPlayer rows,
	// most recent last, for placement and overperformance calculation.
	RecentMatchPlayers(ctx context.Context, userID string, limit int) ([]model.MatchPlayer, error)

	// InsertDailyScore inserts a DailyScore row; a unique-violation on
	// (userId, date) surfaces apperr.ErrDuplicateDaily.
	InsertDailyScore(ctx context.Context, score model.DailyScore) error

	// TopDailyScores returns the top-N DailyScore rows for a given day.
	TopDailyScores(ctx context.Context, date string, limit int) ([]model.DailyScore, error)

	// DailyRank returns a user's 1-indexed rank for a given day, or false
	// if they have no score that day.
	DailyRank(ctx context.Context, date, userID string) (rank int, ok bool, err error)

	// Health reports whether the gateway can currently serve writes.
	Health(ctx context.Context) error
}
