package match

// Outbound payload shapes for the richer match-lifecycle frames (spec
// §4.6). Queue-time frames (welcome, queued, pong, error) live in
// internal/wire; these are match-specific and therefore live alongside
// the orchestrator that produces them.

// MatchFoundPayload accompanies wire.OutMatchFound, sent to both waiters
// the instant matchmaking pairs them (spec §4.4 item 4).
type MatchFoundPayload struct {
	MatchID          string `json:"matchId"`
	OpponentUserID   string `json:"opponentUserId"`
	Seed             string `json:"seed"`
	Mode             string `json:"mode"`
	RoundTimeSeconds int    `json:"roundTimeSeconds"`
	TextLength       int    `json:"textLength"`
	Difficulty       string `json:"difficulty"`
	Punctuation      bool   `json:"punctuation"`
	StartAtMs        int64  `json:"startAtMs"`
}

// JoinedPayload acknowledges a `join` frame once both the handshake is
// valid and the player is a recognised participant (spec §5: "join →
// joined ack → any match event frame").
type JoinedPayload struct {
	MatchID      string `json:"matchId"`
	RoundNumber  int    `json:"roundNumber"`
	RoundText    string `json:"roundText"`
	RoundStartAt int64  `json:"roundStartAtMs"`
}

// OpponentJoinedPayload notifies the other participant that their
// opponent's socket is attached.
type OpponentJoinedPayload struct {
	OpponentUserID string `json:"opponentUserId"`
}

// OpponentLeftPayload notifies of a disconnect (not necessarily a
// forfeit; the reconnect grace timer decides that).
type OpponentLeftPayload struct {
	OpponentUserID string `json:"opponentUserId"`
}

// OpponentProgressPayload relays a progress frame to the other side.
type OpponentProgressPayload struct {
	ProgressIndex int `json:"progressIndex"`
	TypedLength   int `json:"typedLength"`
	MistakesCount int `json:"mistakesCount"`
	ElapsedMs     int `json:"elapsedMs"`
}

// OpponentFinishedPayload tells the other side a result has landed for
// this round (without revealing its contents before resolution).
type OpponentFinishedPayload struct{}

// ResultReceivedPayload acknowledges a result submission was accepted.
type ResultReceivedPayload struct {
	RoundNumber int `json:"roundNumber"`
}

// RoundEndPayload is emitted to both participants once a round resolves.
type RoundEndPayload struct {
	RoundNumber    int            `json:"roundNumber"`
	CombatScores   map[string]float64 `json:"combatScores"`
	Damage         map[string]int     `json:"damage"`
	HP             map[string]int     `json:"hp"`
	RoundWinnerID  string             `json:"roundWinnerId,omitempty"`
	NextRoundText  string             `json:"nextRoundText,omitempty"`
	NextRoundStart int64              `json:"nextRoundStartMs,omitempty"`
	DrawWindowOpen bool               `json:"drawWindowOpen"`
}

// MatchCompletePayload is the terminal frame (spec §4.5 item 3).
type MatchCompletePayload struct {
	WinnerUserID    string `json:"winnerUserId,omitempty"`
	Draw            bool   `json:"draw"`
	ForfeitedUserID string `json:"forfeitedUserId,omitempty"`
	FinalHP         map[string]int `json:"finalHp"`
}

// MatchStateRecoveryPayload is sent on a reconnecting join for an
// in-progress match (spec §4.5 reconnect section).
type MatchStateRecoveryPayload struct {
	ServerTimeMs          int64             `json:"serverTimeMs"`
	RoundNumber           int               `json:"roundNumber"`
	RoundStartAtMs        int64             `json:"roundStartAtMs"`
	MaxRounds             int               `json:"maxRounds"`
	RoundWins             map[string]int    `json:"roundWins"`
	OvertimeActive        bool              `json:"overtimeActive"`
	DrawWindowOpen        bool              `json:"drawWindowOpen"`
	HP                    map[string]int    `json:"hp"`
	OpponentProgress      *ProgressSnapshot `json:"opponentProgress,omitempty"`
	OpponentHasSubmitted  bool              `json:"opponentHasSubmitted"`
}
