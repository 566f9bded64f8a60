package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`{"type":"DICE_ROLL","payload":{"keptMask":[true,false,true,false,false]}}`))
	require.NoError(t, err)
	assert.Equal(t, CmdDiceRoll, f.Type)

	var p DiceRollPayload
	require.NoError(t, f.Decode(&p))
	require.NotNil(t, p.KeptMask)
	assert.Equal(t, [5]bool{true, false, true, false, false}, *p.KeptMask)
}

func TestParseFrame_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `DICE_ROLL`},
		{"missing type", `{"payload":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFrame([]byte(tc.raw))
			assert.ErrorIs(t, err, ErrInvalidMessage)
		})
	}

	_, err := ParseFrame([]byte(`{"type":"HACK_THE_DICE"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestParseFrame_PayloadOptional(t *testing.T) {
	f, err := ParseFrame([]byte(`{"type":"PING"}`))
	require.NoError(t, err)

	var p DiceRollPayload
	assert.NoError(t, f.Decode(&p))
	assert.Nil(t, p.KeptMask)
}

func TestNewEnvelope_TimestampISO8601UTC(t *testing.T) {
	env := NewEnvelope(EvtPong, nil)
	ts, err := time.Parse(time.RFC3339, env.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"PONG"`)
}

func TestKeepMaskFromIndices(t *testing.T) {
	mask, ok := KeepMaskFromIndices([]int{0, 2, 4})
	require.True(t, ok)
	assert.Equal(t, [5]bool{true, false, true, false, true}, mask)

	_, ok = KeepMaskFromIndices([]int{5})
	assert.False(t, ok)
	_, ok = KeepMaskFromIndices([]int{-1})
	assert.False(t, ok)
}
