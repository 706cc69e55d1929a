package textgen

// words is the fixed curated pool text is drawn from. It intentionally
// skips anything requiring capitalisation or punctuation of its own so
// sentence-ending marks can be injected deterministically by Generate.
var words = []string{
	"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog", "time",
	"flies", "like", "an", "arrow", "fruit", "banana", "practice", "makes",
	"perfect", "speed", "accuracy", "matters", "more", "than", "raw", "power",
	"keyboard", "fingers", "dance", "across", "keys", "rhythm", "flow", "state",
	"focus", "breathe", "steady", "hands", "mind", "calm", "clear", "sharp",
	"word", "after", "word", "builds", "momentum", "every", "keystroke",
	"counts", "toward", "victory", "round", "ends", "damage", "dealt", "health",
	"drops", "fast", "typing", "wins", "matches", "ranked", "ladder", "climb",
	"tier", "promotion", "demotion", "rating", "rises", "falls", "with", "skill",
	"seed", "text", "stream", "deterministic", "fair", "play", "connection",
	"socket", "frame", "message", "server", "client", "room", "match", "queue",
	"waiting", "pairing", "opponent", "challenger", "champion", "novice",
	"veteran", "warmup", "cooldown", "streak", "combo", "bonus", "penalty",
	"error", "correction", "retype", "backspace", "cursor", "blink", "screen",
	"glow", "neon", "pulse", "digital", "arena", "combat", "strike", "block",
	"counter", "parry", "victory", "defeat", "draw", "forfeit", "reconnect",
	"timeout", "grace", "period", "clock", "tick", "second", "minute", "hour",
	"day", "night", "dawn", "dusk", "river", "mountain", "valley", "ocean",
	"forest", "desert", "storm", "thunder", "lightning", "rain", "snow", "wind",
	"fire", "earth", "water", "air", "metal", "wood", "stone", "glass", "steel",
	"light", "shadow", "dream", "hope", "courage", "wisdom", "patience",
	"discipline", "consistency", "precision", "efficiency", "mastery", "growth",
}

const fallbackSeed uint64 = 0x9e3779b97f4a7c15
