// Package postgres implements storage.Gateway against PostgreSQL, grounded
// on the teacher's internal/infrastructure/db.Manager connection-pool
// shape and internal/persistence/postgres repo style (ON CONFLICT upserts,
// sqlx positional binds); the queries for every aggregate live in this one
// file.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/velotype/velotype/internal/apperr"
	"github.com/velotype/velotype/internal/breaker"
	"github.com/velotype/velotype/internal/model"
	"github.com/velotype/velotype/internal/storage"
)

//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

// Config mirrors the teacher's db.Config pool-tuning knobs.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DefaultConfig mirrors db.DefaultConfig.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    10 * time.Second,
	}
}

// Gateway is the PostgreSQL-backed storage.Gateway. Every write is
// wrapped by a circuit breaker so a flapping database surfaces
// apperr.ErrDatabaseUnavailable instead of hanging match finalisation.
type Gateway struct {
	db      *sqlx.DB
	timeout time.Duration
	writes  *breaker.Breaker
	rank    storage.RankCache
}

// Open connects to Postgres and returns a ready Gateway. Callers should
// treat a non-nil error as fatal at startup.
func Open(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DSN is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Gateway{
		db:      db,
		timeout: cfg.QueryTimeout,
		writes:  breaker.New("postgres-writes"),
		rank:    storage.NewRankCacheAuto(storage.RankCacheAddrFromEnv()),
	}, nil
}

// Migrate applies the embedded schema idempotently.
func (g *Gateway) Migrate(ctx context.Context) error {
	_, err := g.db.ExecContext(ctx, Schema)
	return err
}

func (g *Gateway) Close() error { return g.db.Close() }

var _ storage.Gateway = (*Gateway)(nil)

func (g *Gateway) CreateMatch(ctx context.Context, m model.Match, playerA, playerB model.MatchPlayer) error {
	return g.writes.ExecuteVoid(func() error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		tx, err := g.db.BeginTxx(ctx, nil)
		if err != nil {
			return wrapDBError(err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO matches (id, seed, mode, round_time_seconds, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, m.Seed, m.Mode, m.RoundTimeSeconds, m.Status, m.CreatedAt); err != nil {
			return wrapDBError(err)
		}

		for _, p := range []model.MatchPlayer{playerA, playerB} {
			if err := upsertMatchPlayer(ctx, tx, p); err != nil {
				return err
			}
		}

		return wrapDBError(tx.Commit())
	})
}

func (g *Gateway) RecordMatch(ctx context.Context, matchID string, playerA, playerB model.MatchPlayer, status model.MatchStatus) error {
	return g.writes.ExecuteVoid(func() error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		tx, err := g.db.BeginTxx(ctx, nil)
		if err != nil {
			return wrapDBError(err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `UPDATE matches SET status = $1 WHERE id = $2`, status, matchID); err != nil {
			return wrapDBError(err)
		}

		for _, p := range []model.MatchPlayer{playerA, playerB} {
			if err := upsertMatchPlayer(ctx, tx, p); err != nil {
				return err
			}
		}

		return wrapDBError(tx.Commit())
	})
}

func upsertMatchPlayer(ctx context.Context, tx *sqlx.Tx, p model.MatchPlayer) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO match_players (
			match_id, user_id, wpm, raw_wpm, accuracy, consistency, score, result,
			damage_dealt, damage_taken, errors, correct_chars, total_typed,
			rating_before, rating_after, rating_delta, opponent_rating_at_match, progress_samples
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (match_id, user_id) DO UPDATE SET
			wpm = EXCLUDED.wpm, raw_wpm = EXCLUDED.raw_wpm, accuracy = EXCLUDED.accuracy,
			consistency = EXCLUDED.consistency, score = EXCLUDED.score, result = EXCLUDED.result,
			damage_dealt = EXCLUDED.damage_dealt, damage_taken = EXCLUDED.damage_taken,
			errors = EXCLUDED.errors, correct_chars = EXCLUDED.correct_chars,
			total_typed = EXCLUDED.total_typed, rating_before = EXCLUDED.rating_before,
			rating_after = EXCLUDED.rating_after, rating_delta = EXCLUDED.rating_delta,
			opponent_rating_at_match = EXCLUDED.opponent_rating_at_match,
			progress_samples = EXCLUDED.progress_samples`,
		p.MatchID, p.UserID, p.WPM, p.RawWPM, p.Accuracy, p.Consistency, p.Score, p.Result,
		p.DamageDealt, p.DamageTaken, p.Errors, p.CorrectChars, p.TotalTyped,
		p.RatingBefore, p.RatingAfter, p.RatingDelta, p.OpponentRatingAtMatch, pq.Array(p.ProgressSamples))
	return wrapDBError(err)
}

func (g *Gateway) ApplyRatings(ctx context.Context, updates []storage.RatingUpdate) error {
	return g.writes.ExecuteVoid(func() error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		tx, err := g.db.BeginTxx(ctx, nil)
		if err != nil {
			return wrapDBError(err)
		}
		defer tx.Rollback()

		for _, u := range updates {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ratings (user_id, rating, competitive_rating, placement_games_played)
				VALUES ($1, $2, $3, 0)
				ON CONFLICT (user_id) DO UPDATE SET
					rating = EXCLUDED.rating, competitive_rating = $3`,
				u.UserID, u.NewRating, u.NewCompetitive); err != nil {
				return wrapDBError(err)
			}
		}

		return wrapDBError(tx.Commit())
	})
}

func (g *Gateway) IncrementPlacement(ctx context.Context, updates []storage.PlacementIncrement) error {
	return g.writes.ExecuteVoid(func() error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		tx, err := g.db.BeginTxx(ctx, nil)
		if err != nil {
			return wrapDBError(err)
		}
		defer tx.Rollback()

		for _, u := range updates {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO ratings (user_id, placement_games_played)
				VALUES ($1, $2)
				ON CONFLICT (user_id) DO UPDATE SET placement_games_played = EXCLUDED.placement_games_played`,
				u.UserID, u.NewCount); err != nil {
				return wrapDBError(err)
			}
		}

		return wrapDBError(tx.Commit())
	})
}

func (g *Gateway) UpdatePlacementMMR(ctx context.Context, userID string, initialRating int) error {
	return g.writes.ExecuteVoid(func() error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		_, err := g.db.ExecContext(ctx, `UPDATE ratings SET rating = $1 WHERE user_id = $2`, initialRating, userID)
		return wrapDBError(err)
	})
}

func (g *Gateway) GetRating(ctx context.Context, userID string) (model.Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var r model.Rating
	err := g.db.GetContext(ctx, &r, `
		SELECT user_id, rating, competitive_rating, placement_games_played
		FROM ratings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Rating{UserID: userID}, nil
	}
	if err != nil {
		return model.Rating{}, wrapDBError(err)
	}
	return r, nil
}

// rankCacheTTL bounds how stale the Apex leaderboard-position count can be.
// A few seconds of staleness is fine: the check only gates a first Apex
// promotion, not the rating delta itself or a demotion.
const rankCacheTTL = 5 * time.Second

func (g *Gateway) CountRatingAbove(ctx context.Context, rating int) (int, error) {
	if g.rank != nil {
		if count, ok := g.rank.Get(rating); ok {
			return count, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var count int
	err := g.db.GetContext(ctx, &count, `SELECT count(*) FROM ratings WHERE rating > $1`, rating)
	if err != nil {
		return 0, wrapDBError(err)
	}
	if g.rank != nil {
		g.rank.Set(rating, count, rankCacheTTL)
	}
	return count, nil
}

// matchPlayerRow mirrors model.MatchPlayer for scanning: progress_samples
// is an INTEGER[] column, and pq only knows how to Scan that into one of
// its own array types, not a bare []int (which isn't a sql.Scanner).
type matchPlayerRow struct {
	MatchID               string          `db:"match_id"`
	UserID                string          `db:"user_id"`
	WPM                   float64         `db:"wpm"`
	RawWPM                float64         `db:"raw_wpm"`
	Accuracy              float64         `db:"accuracy"`
	Consistency           float64         `db:"consistency"`
	Score                 float64         `db:"score"`
	Result                model.RoundResult `db:"result"`
	DamageDealt           int             `db:"damage_dealt"`
	DamageTaken           int             `db:"damage_taken"`
	Errors                int             `db:"errors"`
	CorrectChars          int             `db:"correct_chars"`
	TotalTyped            int             `db:"total_typed"`
	RatingBefore          *int            `db:"rating_before"`
	RatingAfter           *int            `db:"rating_after"`
	RatingDelta           int             `db:"rating_delta"`
	OpponentRatingAtMatch *int            `db:"opponent_rating_at_match"`
	ProgressSamples       pq.Int64Array   `db:"progress_samples"`
}

func (r matchPlayerRow) toModel() model.MatchPlayer {
	samples := make([]int, len(r.ProgressSamples))
	for i, v := range r.ProgressSamples {
		samples[i] = int(v)
	}
	return model.MatchPlayer{
		MatchID:               r.MatchID,
		UserID:                r.UserID,
		WPM:                   r.WPM,
		RawWPM:                r.RawWPM,
		Accuracy:              r.Accuracy,
		Consistency:           r.Consistency,
		Score:                 r.Score,
		Result:                r.Result,
		DamageDealt:           r.DamageDealt,
		DamageTaken:           r.DamageTaken,
		Errors:                r.Errors,
		CorrectChars:          r.CorrectChars,
		TotalTyped:            r.TotalTyped,
		RatingBefore:          r.RatingBefore,
		RatingAfter:           r.RatingAfter,
		RatingDelta:           r.RatingDelta,
		OpponentRatingAtMatch: r.OpponentRatingAtMatch,
		ProgressSamples:       samples,
	}
}

func (g *Gateway) RecentMatchPlayers(ctx context.Context, userID string, limit int) ([]model.MatchPlayer, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var rows []matchPlayerRow
	err := g.db.SelectContext(ctx, &rows, `
		SELECT match_id, user_id, wpm, raw_wpm, accuracy, consistency, score, result,
		       damage_dealt, damage_taken, errors, correct_chars, total_typed,
		       rating_before, rating_after, rating_delta, opponent_rating_at_match,
		       progress_samples
		FROM (
			SELECT mp.*, m.created_at AS match_created_at
			FROM match_players mp
			JOIN matches m ON m.id = mp.match_id
			WHERE mp.user_id = $1
			ORDER BY m.created_at DESC
			LIMIT $2
		) recent ORDER BY recent.match_created_at ASC`, userID, limit)
	if err != nil {
		return nil, wrapDBError(err)
	}

	players := make([]model.MatchPlayer, len(rows))
	for i, r := range rows {
		players[i] = r.toModel()
	}
	return players, nil
}

func (g *Gateway) InsertDailyScore(ctx context.Context, score model.DailyScore) error {
	return g.writes.ExecuteVoid(func() error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		_, err := g.db.ExecContext(ctx, `
			INSERT INTO daily_scores (
				user_id, date_key, wpm, raw_wpm, accuracy, consistency, score,
				correct_chars, total_typed, errors, seed, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			score.UserID, score.Date, score.WPM, score.RawWPM, score.Accuracy, score.Consistency,
			score.Score, score.CorrectChars, score.TotalTyped, score.Errors, score.Seed, score.CreatedAt)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperr.ErrDuplicateDaily
		}
		return wrapDBError(err)
	})
}

func (g *Gateway) TopDailyScores(ctx context.Context, date string, limit int) ([]model.DailyScore, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var rows []model.DailyScore
	err := g.db.SelectContext(ctx, &rows, `
		SELECT user_id, date_key, wpm, raw_wpm, accuracy, consistency, score,
		       correct_chars, total_typed, errors, seed, created_at
		FROM daily_scores WHERE date_key = $1
		ORDER BY score DESC LIMIT $2`, date, limit)
	if err != nil {
		return nil, wrapDBError(err)
	}
	return rows, nil
}

func (g *Gateway) DailyRank(ctx context.Context, date, userID string) (int, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var score float64
	err := g.db.GetContext(ctx, &score, `SELECT score FROM daily_scores WHERE date_key = $1 AND user_id = $2`, date, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapDBError(err)
	}

	var higher int
	err = g.db.GetContext(ctx, &higher, `SELECT count(*) FROM daily_scores WHERE date_key = $1 AND score > $2`, date, score)
	if err != nil {
		return 0, false, wrapDBError(err)
	}
	return higher + 1, true, nil
}

func (g *Gateway) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.db.PingContext(ctx)
}

func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(apperr.KindDatabaseUnavailable, "database unavailable", err)
}
