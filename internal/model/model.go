// Package model holds the persisted row shapes described in spec §3. These
// are storage-layer DTOs: sqlx `db` tags for Postgres, `json` tags for the
// wire and the out-of-scope HTTP surface.
package model

import "time"

// MatchStatus enumerates Match.status.
type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchInProgress MatchStatus = "in-progress"
	MatchCompleted  MatchStatus = "completed"
	MatchAbandoned  MatchStatus = "abandoned"
)

// RoundResult enumerates MatchPlayer.result.
type RoundResult string

const (
	ResultWin  RoundResult = "win"
	ResultLoss RoundResult = "loss"
	ResultDraw RoundResult = "draw"
)

// User is a stable account record. Created at signup, mutated only by
// self, destroyed (cascading) on account erasure.
type User struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	EmailHash      *string   `db:"email_hash" json:"-"`
	PasswordHash   *string   `db:"password_hash" json:"-"`
	SettingsJSON   []byte    `db:"settings" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// Rating is 1:1 with User.
type Rating struct {
	UserID               string `db:"user_id" json:"userId"`
	Rating               *int   `db:"rating" json:"rating"`
	CompetitiveRating    *int   `db:"competitive_rating" json:"competitiveRating"`
	PlacementGamesPlayed int    `db:"placement_games_played" json:"placementGamesPlayed"`
}

// InPlacement reports whether the account has not yet been assigned a main
// rating.
func (r Rating) InPlacement() bool { return r.Rating == nil }

// Match is the per-game record.
type Match struct {
	ID              string      `db:"id" json:"id"`
	Seed            string      `db:"seed" json:"seed"`
	Mode            string      `db:"mode" json:"mode"`
	RoundTimeSeconds int        `db:"round_time_seconds" json:"roundTimeSeconds"`
	Status          MatchStatus `db:"status" json:"status"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
}

// MatchPlayer is one (matchId, userId) row; two exist per Match.
type MatchPlayer struct {
	MatchID         string      `db:"match_id" json:"matchId"`
	UserID          string      `db:"user_id" json:"userId"`
	WPM             float64     `db:"wpm" json:"wpm"`
	RawWPM          float64     `db:"raw_wpm" json:"rawWpm"`
	Accuracy        float64     `db:"accuracy" json:"accuracy"`
	Consistency     float64     `db:"consistency" json:"consistency"`
	Score           float64     `db:"score" json:"score"`
	Result          RoundResult `db:"result" json:"result"`
	DamageDealt     int         `db:"damage_dealt" json:"damageDealt"`
	DamageTaken     int         `db:"damage_taken" json:"damageTaken"`
	Errors          int         `db:"errors" json:"errors"`
	CorrectChars    int         `db:"correct_chars" json:"correctChars"`
	TotalTyped      int         `db:"total_typed" json:"totalTyped"`
	RatingBefore    *int        `db:"rating_before" json:"ratingBefore"`
	RatingAfter     *int        `db:"rating_after" json:"ratingAfter"`
	RatingDelta     int         `db:"rating_delta" json:"ratingDelta"`
	OpponentRatingAtMatch *int  `db:"opponent_rating_at_match" json:"opponentRatingAtMatch"`
	ProgressSamples []int       `db:"progress_samples" json:"progressSamples"`
}

// DailyScore is one (userId, date) row for the daily challenge.
type DailyScore struct {
	UserID      string    `db:"user_id" json:"userId"`
	Date        string    `db:"date_key" json:"date"`
	WPM         float64   `db:"wpm" json:"wpm"`
	RawWPM      float64   `db:"raw_wpm" json:"rawWpm"`
	Accuracy    float64   `db:"accuracy" json:"accuracy"`
	Consistency float64   `db:"consistency" json:"consistency"`
	Score       float64   `db:"score" json:"score"`
	CorrectChars int      `db:"correct_chars" json:"correctChars"`
	TotalTyped  int       `db:"total_typed" json:"totalTyped"`
	Errors      int       `db:"errors" json:"errors"`
	Seed        string    `db:"seed" json:"seed"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// RevokedToken is keyed by sha256(token) and pruned lazily once Expiry
// passes.
type RevokedToken struct {
	TokenHash string    `db:"token_hash" json:"tokenHash"`
	Expiry    time.Time `db:"expiry" json:"expiry"`
}
