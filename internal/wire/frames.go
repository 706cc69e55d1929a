// Package wire implements C6: the bidirectional framed-JSON connection
// layer — inbound/outbound frame types, per-connection rate limiting, and
// heartbeat tracking (spec §4.6). Reworked from the teacher's
// internal/providers/kraken/websocket.go, which is an outbound WS *client*
// with a reconnect channel and a handler-by-channel-name map; here the
// same shapes serve an inbound WS *server* room, one Conn per player.
package wire

import "encoding/json"

// InboundKind enumerates the frame types a client may send (spec §4.6).
type InboundKind string

const (
	InJoin     InboundKind = "join"
	InProgress InboundKind = "progress"
	InResult   InboundKind = "result"
	InForfeit  InboundKind = "forfeit"
	InDrawVote InboundKind = "draw_vote"
	InPing     InboundKind = "ping"
	InLeave    InboundKind = "leave"
)

// OutboundKind enumerates the frame types the server may send.
type OutboundKind string

const (
	OutWelcome            OutboundKind = "welcome"
	OutQueued             OutboundKind = "queued"
	OutMatchFound         OutboundKind = "MATCH_FOUND"
	OutJoined             OutboundKind = "joined"
	OutOpponentJoined     OutboundKind = "opponent_joined"
	OutOpponentLeft       OutboundKind = "opponent_left"
	OutOpponentProgress   OutboundKind = "opponent_progress"
	OutOpponentFinished   OutboundKind = "opponent_finished"
	OutResultReceived     OutboundKind = "result_received"
	OutRoundEnd           OutboundKind = "round_end"
	OutMatchComplete      OutboundKind = "match_complete"
	OutMatchStateRecovery OutboundKind = "match_state_recovery"
	OutPong               OutboundKind = "pong"
	OutError              OutboundKind = "error"
)

// InboundFrame is the union of every field any inbound frame kind can
// carry; unused fields are simply omitted at the JSON boundary. Unknown
// frame kinds, or a frame that fails to unmarshal, are rejected at parse
// time with invalid-payload (spec §9's "strict tagged-variant message
// types validated at the parse boundary").
type InboundFrame struct {
	Type InboundKind `json:"type"`

	// join
	MatchID string `json:"matchId,omitempty"`
	Token   string `json:"token,omitempty"`

	// progress
	ProgressIndex int `json:"progressIndex,omitempty"`
	TypedLength   int `json:"typedLength,omitempty"`
	MistakesCount int `json:"mistakesCount,omitempty"`
	ElapsedMs     int `json:"elapsedMs,omitempty"`

	// result
	Typed           string `json:"typed,omitempty"`
	Samples         []int  `json:"samples,omitempty"`
	TotalErrors     *int   `json:"totalErrors,omitempty"`
	TotalKeystrokes *int   `json:"totalKeystrokes,omitempty"`

	// draw_vote
	Vote string `json:"vote,omitempty"`

	// ping
	ClientTs int64 `json:"clientTs,omitempty"`
}

// Validate rejects frames missing fields their Type requires, producing
// the invalid-payload error kind at the parse boundary (spec §7/§9).
func (f InboundFrame) Validate() error {
	switch f.Type {
	case InJoin:
		if f.MatchID == "" || f.Token == "" {
			return errInvalidPayload("join requires matchId and token")
		}
	case InProgress:
		// all numeric fields default to their zero value meaningfully
	case InResult:
		// typed may legitimately be empty (no submission); nothing required
	case InForfeit, InLeave:
		// no fields required
	case InDrawVote:
		if f.Vote != "draw" && f.Vote != "continue" {
			return errInvalidPayload("draw_vote requires vote=draw|continue")
		}
	case InPing:
		// clientTs may legitimately be zero
	default:
		return errInvalidPayload("unknown frame type")
	}
	return nil
}

// OutboundFrame is what the server writes to the socket: a kind tag plus
// an arbitrary JSON payload built by the NewXxx constructors below.
type OutboundFrame struct {
	Type OutboundKind    `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func outbound(kind OutboundKind, payload any) OutboundFrame {
	if payload == nil {
		return OutboundFrame{Type: kind}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboundFrame{Type: OutError, Data: mustMarshal(map[string]string{"message": "internal error"})}
	}
	return OutboundFrame{Type: kind, Data: data}
}

func mustMarshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// NewError builds an error{message} outbound frame (spec §4.6/§7).
func NewError(message string) OutboundFrame {
	return outbound(OutError, map[string]string{"message": message})
}

// NewPong echoes a ping as pong{clientTs, serverTs}.
func NewPong(clientTs, serverTs int64) OutboundFrame {
	return outbound(OutPong, map[string]int64{"clientTs": clientTs, "serverTs": serverTs})
}

// NewWelcome greets a freshly-opened socket.
func NewWelcome(userID string) OutboundFrame {
	return outbound(OutWelcome, map[string]string{"userId": userID})
}

// NewQueued acknowledges a matchmaking join.
func NewQueued() OutboundFrame {
	return outbound(OutQueued, nil)
}

// NewGeneric wraps an arbitrary payload struct under kind, for the
// richer frames (MATCH_FOUND, match_state_recovery, round_end, ...) whose
// payload shapes live in the match package.
func NewGeneric(kind OutboundKind, payload any) OutboundFrame {
	return outbound(kind, payload)
}

type invalidPayloadError struct{ msg string }

func (e *invalidPayloadError) Error() string { return "invalid payload: " + e.msg }

func errInvalidPayload(msg string) error { return &invalidPayloadError{msg: msg} }
