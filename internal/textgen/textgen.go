// Package textgen implements C1: a deterministic, non-cryptographic seeded
// text generator used both for per-round match text and the daily
// challenge text. Equal inputs always produce equal output (spec §4.1,
// invariant 6 in §8).
package textgen

import (
	"strconv"
	"strings"
)

// Difficulty selects word-pool weighting and punctuation injection rates.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// rates holds the injection probabilities for one difficulty, per §4.1.
type rates struct {
	comma  float64 // , ; :
	period float64 // sentence-ending period
}

var difficultyRates = map[Difficulty]rates{
	Easy:   {comma: 0.08, period: 0.10},
	Medium: {comma: 0.12, period: 0.10},
	Hard:   {comma: 0.20, period: 0.15},
}

var midPunctuation = []byte{',', ';', ':'}

// fnvSeed hashes s with the FNV-1a algorithm, falling back to a fixed
// non-zero constant when the hash comes out to zero.
func fnvSeed(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211

	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	if h == 0 {
		return fallbackSeed
	}
	return h
}

// xorshiftRNG is a fast, non-cryptographic PRNG seeded from fnvSeed.
type xorshiftRNG struct {
	state uint64
}

func newXorshiftRNG(seed uint64) *xorshiftRNG {
	if seed == 0 {
		seed = fallbackSeed
	}
	return &xorshiftRNG{state: seed}
}

func (r *xorshiftRNG) next() uint64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	r.state = x
	return x
}

// float64 returns a value in [0, 1).
func (r *xorshiftRNG) float64() float64 {
	return float64(r.next()%1_000_000_000) / 1_000_000_000.0
}

// intn returns a value in [0, n).
func (r *xorshiftRNG) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.next() % uint64(n))
}

// Generate produces a deterministic word/punctuation stream for (seed,
// targetLength, difficulty, punctuation). It draws words from the fixed
// curated list, optionally injects mid-sentence punctuation after words and
// sentence-ending periods at the configured difficulty's rate, then trims
// to targetLength on a word boundary when possible.
func Generate(seed string, targetLength int, difficulty Difficulty, punctuation bool) string {
	if targetLength <= 0 {
		return ""
	}

	rt, ok := difficultyRates[difficulty]
	if !ok {
		rt = difficultyRates[Medium]
	}

	rng := newXorshiftRNG(fnvSeed(seed))

	var b strings.Builder
	wordsSinceCap := 0
	for b.Len() < targetLength+32 {
		w := words[rng.intn(len(words))]

		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		wordsSinceCap++

		if punctuation && wordsSinceCap >= 2 {
			roll := rng.float64()
			switch {
			case roll < rt.period:
				b.WriteByte('.')
				wordsSinceCap = 0
			case roll < rt.period+rt.comma:
				b.WriteByte(midPunctuation[rng.intn(len(midPunctuation))])
			}
		}

		if b.Len() >= targetLength {
			break
		}
	}

	return trimToWordBoundary(b.String(), targetLength)
}

// trimToWordBoundary cuts s down to at most targetLength bytes, preferring
// to stop at the last preceding space so no word is cut in half.
func trimToWordBoundary(s string, targetLength int) string {
	if len(s) <= targetLength {
		return s
	}
	cut := s[:targetLength]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,;:.")
}

// RoundSeed derives the per-round seed so every participant, including a
// late reconnecter, reproduces identical round text from (matchSeed,
// roundNumber) without any server push (spec §4.1).
func RoundSeed(matchSeed string, roundNumber int) string {
	return matchSeed + "-" + strconv.Itoa(roundNumber)
}
