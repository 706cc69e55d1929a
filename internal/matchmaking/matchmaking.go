// Package matchmaking implements C4: queue management and deterministic
// skill-bracket pairing. Pairing itself is synchronous (Tick); the
// periodic-tick goroutine that drives it lives in internal/httpapi,
// grounded on the teacher's internal/scheduler (periodic-tick worker)
// pattern of a single goroutine ticking over a work set rather than
// reacting to callbacks per item.
package matchmaking

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/velotype/velotype/internal/textgen"
)

// Defaults from spec §4.4/§6.
const (
	DefaultMaxRounds        = 6
	DefaultPrepSeconds      = 10
	DefaultCountdownSeconds = 3
	DefaultBreakSeconds     = 7
	DefaultRoundTimeSeconds = 20
	DefaultTextLength       = 180
	DefaultDifficulty       = textgen.Medium
	DefaultPunctuation      = true

	// windowBaseRating and windowGrowthPerSecond govern how far apart two
	// waiters' ratings may be and still pair, per spec's "expansion window
	// grows with wait time" requirement. Implementation-defined per the
	// spec's own Open Question; deterministic given identical inputs.
	windowBaseRating       = 75.0
	windowGrowthPerSecond  = 8.0
)

// MatchConfig is handed to the orchestrator once two waiters are paired
// (spec §4.4 item 2).
type MatchConfig struct {
	MatchID          string
	Seed             string
	UserIDA          string
	UserIDB          string
	Mode             string
	RoundTimeSeconds int
	TextLength       int
	Difficulty       textgen.Difficulty
	Punctuation      bool
	StartAt          time.Time
	MaxRounds        int
	PrepSeconds      int
	CountdownSeconds int
	BreakSeconds     int
	PlayerRatings    map[string]int
}

// waiterEntry is one queued player.
type waiterEntry struct {
	userID   string
	rating   int
	joinedAt time.Time
}

// Service owns the ranked matchmaking queue. Callers must supply Join
// with the player's current (possibly provisional, per rating.ProvisionalRating)
// rating; only one active waiter per user is kept. Pairing is driven by
// calling Tick on an interval; Service has no goroutine of its own.
type Service struct {
	mu      sync.Mutex
	waiters map[string]*waiterEntry

	clock func() time.Time
	newID func() string
}

// Option configures a Service at construction for testability.
type Option func(*Service)

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides uuid generation, for deterministic tests.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// NewService builds an empty queue.
func NewService(opts ...Option) *Service {
	s := &Service{
		waiters: make(map[string]*waiterEntry),
		clock:   time.Now,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Join enqueues userID at the given rating. A second Join from the same
// user replaces the prior waiter entry (and its wait-time clock resets),
// per spec §4.4 ("a new join replaces the old").
func (s *Service) Join(userID string, playerRating int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.waiters[userID] = &waiterEntry{userID: userID, rating: playerRating, joinedAt: s.clock()}
}

// Leave removes userID from the queue silently (disconnect or explicit
// `leave` frame).
func (s *Service) Leave(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, userID)
}

// QueueDepth reports the current number of waiters, for operational
// metrics.
func (s *Service) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiters)
}

// Tick runs one pairing pass and returns every MatchConfig produced. The
// caller is responsible for calling Tick on an interval and for acting on
// the returned configs (starting the match, notifying the players).
func (s *Service) Tick() []MatchConfig {
	s.mu.Lock()
	now := s.clock()
	entries := make([]*waiterEntry, 0, len(s.waiters))
	for _, w := range s.waiters {
		entries = append(entries, w)
	}
	s.mu.Unlock()

	pairs, configs := pairWaiters(entries, now, s.newID)

	if len(pairs) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, p := range pairs {
		delete(s.waiters, p[0].userID)
		delete(s.waiters, p[1].userID)
	}
	s.mu.Unlock()

	return configs
}

// pairWaiters implements the deterministic rating-proximity pairing
// policy: sort by rating, then repeatedly take the globally smallest
// eligible gap (within the wait-time-expanded window), tie-broken by
// total wait time (serve the longer-waiting pair first) and finally by
// userID for full determinism given identical inputs and wait times.
func pairWaiters(entries []*waiterEntry, now time.Time, newID func() string) ([][2]*waiterEntry, []MatchConfig) {
	sorted := append([]*waiterEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].rating < sorted[j].rating })

	used := make(map[string]bool, len(sorted))
	var pairs [][2]*waiterEntry
	var configs []MatchConfig

	for {
		type candidate struct {
			i, j     int
			gap      float64
			waitSum  time.Duration
		}
		var best *candidate

		for i := 0; i < len(sorted); i++ {
			if used[sorted[i].userID] {
				continue
			}
			for j := i + 1; j < len(sorted); j++ {
				if used[sorted[j].userID] {
					continue
				}
				gap := float64(sorted[j].rating - sorted[i].rating)
				windowI := windowBaseRating + windowGrowthPerSecond*now.Sub(sorted[i].joinedAt).Seconds()
				windowJ := windowBaseRating + windowGrowthPerSecond*now.Sub(sorted[j].joinedAt).Seconds()
				window := windowI
				if windowJ > window {
					window = windowJ
				}
				if gap > window {
					continue
				}

				waitSum := now.Sub(sorted[i].joinedAt) + now.Sub(sorted[j].joinedAt)
				c := candidate{i: i, j: j, gap: gap, waitSum: waitSum}
				if best == nil ||
					c.gap < best.gap ||
					(c.gap == best.gap && c.waitSum > best.waitSum) ||
					(c.gap == best.gap && c.waitSum == best.waitSum && lessDeterministic(sorted[i].userID, sorted[j].userID, sorted[best.i].userID, sorted[best.j].userID)) {
					best = &c
				}
			}
		}

		if best == nil {
			break
		}

		a, b := sorted[best.i], sorted[best.j]
		used[a.userID] = true
		used[b.userID] = true
		pairs = append(pairs, [2]*waiterEntry{a, b})
		configs = append(configs, buildMatchConfig(a, b, now, newID))
	}

	return pairs, configs
}

func lessDeterministic(aUser, bUser, candAUser, candBUser string) bool {
	return aUser+bUser < candAUser+candBUser
}

func buildMatchConfig(a, b *waiterEntry, now time.Time, newID func() string) MatchConfig {
	matchID := newID()
	seed := matchID + "-" + newID()

	return MatchConfig{
		MatchID:          matchID,
		Seed:             seed,
		UserIDA:          a.userID,
		UserIDB:          b.userID,
		Mode:             "ranked",
		RoundTimeSeconds: DefaultRoundTimeSeconds,
		TextLength:       DefaultTextLength,
		Difficulty:       DefaultDifficulty,
		Punctuation:      DefaultPunctuation,
		StartAt:          now.Add(DefaultPrepSeconds * time.Second),
		MaxRounds:        DefaultMaxRounds,
		PrepSeconds:      DefaultPrepSeconds,
		CountdownSeconds: DefaultCountdownSeconds,
		BreakSeconds:     DefaultBreakSeconds,
		PlayerRatings:    map[string]int{a.userID: a.rating, b.userID: b.rating},
	}
}
