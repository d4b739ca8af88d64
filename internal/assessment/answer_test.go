package assessment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerUnmarshalText(t *testing.T) {
	var a Answer
	require.NoError(t, json.Unmarshal([]byte(`"He goes to school."`), &a))

	assert.False(t, a.Choice)
	assert.Equal(t, "He goes to school.", a.TransportValue())
	assert.True(t, a.Answered())
}

func TestAnswerUnmarshalChoice(t *testing.T) {
	var a Answer
	require.NoError(t, json.Unmarshal([]byte(`{"value": "B", "index": 2}`), &a))

	assert.True(t, a.Choice)
	assert.Equal(t, "B", a.Value)
	assert.Equal(t, 2, a.Index)
	assert.Equal(t, "B", a.TransportValue(), "index must be stripped in transport")
}

func TestAnswerRoundTrip(t *testing.T) {
	for _, a := range []Answer{Text("free text"), Choice("C", 1)} {
		raw, err := json.Marshal(a)
		require.NoError(t, err)

		var back Answer
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, a, back)
	}
}

func TestAnswerEmptyTextIsUnanswered(t *testing.T) {
	assert.False(t, Text("").Answered())
	assert.True(t, Choice("A", 0).Answered())
}

func TestAnswerMapUnwrap(t *testing.T) {
	m := AnswerMap{
		"p1_editing_e1": Text("She has a car."),
		"p2_q_q3":       Choice("B", 2),
		"p1_essay":      Text("My hometown is..."),
	}

	got := m.Unwrap()

	assert.Equal(t, map[string]string{
		"p1_editing_e1": "She has a car.",
		"p2_q_q3":       "B",
		"p1_essay":      "My hometown is...",
	}, got)
}

func TestAnswerRejectsOtherShapes(t *testing.T) {
	var a Answer
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &a))
	assert.Error(t, json.Unmarshal([]byte(``), &a))
}
