package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboundFrameValidateJoinRequiresFields(t *testing.T) {
	err := InboundFrame{Type: InJoin}.Validate()
	assert.Error(t, err)

	err = InboundFrame{Type: InJoin, MatchID: "m1", Token: "tok"}.Validate()
	assert.NoError(t, err)
}

func TestInboundFrameValidateDrawVoteRequiresKnownVote(t *testing.T) {
	assert.Error(t, InboundFrame{Type: InDrawVote, Vote: "maybe"}.Validate())
	assert.NoError(t, InboundFrame{Type: InDrawVote, Vote: "draw"}.Validate())
	assert.NoError(t, InboundFrame{Type: InDrawVote, Vote: "continue"}.Validate())
}

func TestInboundFrameValidateRejectsUnknownType(t *testing.T) {
	assert.Error(t, InboundFrame{Type: "bogus"}.Validate())
}

func TestNewPongRoundTrips(t *testing.T) {
	frame := NewPong(100, 150)
	require.Equal(t, OutPong, frame.Type)

	var payload struct {
		ClientTs int64 `json:"clientTs"`
		ServerTs int64 `json:"serverTs"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, int64(100), payload.ClientTs)
	assert.Equal(t, int64(150), payload.ServerTs)
}

func TestNewErrorCarriesMessage(t *testing.T) {
	frame := NewError("rate limited")
	var payload struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "rate limited", payload.Message)
}

func TestNewGenericMarshalsArbitraryPayload(t *testing.T) {
	type roundEnd struct {
		RoundNumber int `json:"roundNumber"`
	}
	frame := NewGeneric(OutRoundEnd, roundEnd{RoundNumber: 3})
	assert.Equal(t, OutRoundEnd, frame.Type)

	var payload roundEnd
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, 3, payload.RoundNumber)
}
