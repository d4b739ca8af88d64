package assessment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullDefinition() *Definition {
	return &Definition{
		Paper1: &WritingPaper{
			Editing: []EditingItem{
				{ID: "e1", Text: "He go to school."},
				{ID: "e2", Text: "She have a car."},
				{ID: "e3", Text: "They was late."},
			},
			Essay: &EssayPrompt{Prompt: "Describe your hometown."},
		},
		Paper2: &ReadingPaper{
			Passage: "The industrial revolution began...",
			Questions: []MCQQuestion{
				{ID: "q1", QuestionText: "R1?", Options: []string{"A", "B", "C", "D"}},
				{ID: "q2", QuestionText: "R2?", Options: []string{"A", "B", "C", "D"}},
				{ID: "q3", QuestionText: "R3?", Options: []string{"A", "B", "C", "D"}},
				{ID: "q4", QuestionText: "R4?", Options: []string{"A", "B", "C", "D"}},
			},
		},
		Paper3: &ListeningPaper{
			AudioURL: "listening-section.mp3",
			Questions: []MCQQuestion{
				{ID: "l1", QuestionText: "L1?", Options: []string{"A", "B", "C", "D"}},
				{ID: "l2", QuestionText: "L2?", Options: []string{"A", "B", "C", "D"}},
			},
		},
		Paper4: &OralPaper{
			Passage:      "Read the following aloud.",
			Instructions: "Speak clearly.",
		},
	}
}

func TestFlattenDeterminism(t *testing.T) {
	def := fullDefinition()

	first := Flatten(def, "12")
	second := Flatten(def, "12")

	assert.Equal(t, first, second, "same student, same definition, same sequence")
}

func TestFlattenCompleteness(t *testing.T) {
	steps := Flatten(fullDefinition(), "12")

	// 3 editing + 1 essay + 4 reading + 2 listening + 1 oral.
	require.Len(t, steps, 11)

	seen := make(map[string]bool, len(steps))
	for _, s := range steps {
		assert.False(t, seen[s.ID], "duplicate step id %s", s.ID)
		seen[s.ID] = true
	}
}

func TestFlattenKnownOrderForStudent12(t *testing.T) {
	// Seed("12") == 1569; the shuffled orders below are fixed by that seed.
	steps := Flatten(fullDefinition(), "12")
	require.Len(t, steps, 11)

	assert.Equal(t, []string{
		"p1_editing_e2", "p1_editing_e1", "p1_editing_e3",
		"p1_essay",
		"p2_q_q4", "p2_q_q2", "p2_q_q3", "p2_q_q1",
		"p3_q_l1", "p3_q_l2",
		"p4_oral",
	}, StepIDs(steps))

	// Option order is keyed by the question's shuffled position.
	assert.Equal(t, []string{"A", "D", "B", "C"}, steps[4].Options)
	assert.Equal(t, []string{"A", "D", "C", "B"}, steps[5].Options)
	assert.Equal(t, []string{"B", "A", "C", "D"}, steps[6].Options)
	assert.Equal(t, []string{"D", "B", "A", "C"}, steps[7].Options)
	assert.Equal(t, []string{"D", "B", "C", "A"}, steps[8].Options)
	assert.Equal(t, []string{"B", "A", "C", "D"}, steps[9].Options)
}

func TestFlattenPartOrderingIsFixed(t *testing.T) {
	steps := Flatten(fullDefinition(), "any-student")

	lastPart := 0
	for _, s := range steps {
		assert.GreaterOrEqual(t, s.Part, lastPart, "parts must never interleave")
		lastPart = s.Part
	}
}

func TestFlattenMetadata(t *testing.T) {
	steps := Flatten(fullDefinition(), "12")

	byID := make(map[string]Step, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	essay := byID["p1_essay"]
	assert.Equal(t, StepEssay, essay.Type)
	assert.Equal(t, "Writing Task", essay.Title)
	assert.Equal(t, "Essay", essay.Badge)

	reading := byID["p2_q_q1"]
	assert.Equal(t, StepReadingMCQ, reading.Type)
	assert.Equal(t, "The industrial revolution began...", reading.Passage)
	assert.Equal(t, "Reading", reading.Badge)

	listening := byID["p3_q_l1"]
	assert.Equal(t, "listening-section.mp3", listening.AudioURL)

	oral := byID["p4_oral"]
	assert.Equal(t, StepOral, oral.Type)
	assert.Equal(t, "Speak clearly.", oral.Instructions)
}

func TestFlattenPartialPapers(t *testing.T) {
	def := &Definition{
		Paper2: &ReadingPaper{
			Passage: "Only reading.",
			Questions: []MCQQuestion{
				{ID: "q1", QuestionText: "R1?", Options: []string{"A", "B"}},
			},
		},
	}

	steps := Flatten(def, "12")
	require.Len(t, steps, 1)
	assert.Equal(t, 2, steps[0].Part)
}

func TestFlattenNilDefinition(t *testing.T) {
	assert.Empty(t, Flatten(nil, "12"))
}

func TestFlattenRawMalformed(t *testing.T) {
	assert.Empty(t, FlattenRaw([]byte(`{"paper1": [not json`), "12"))
	assert.Empty(t, FlattenRaw(nil, "12"))
}

func TestFlattenRawDoubleEncoded(t *testing.T) {
	def := fullDefinition()
	inner, err := json.Marshal(def)
	require.NoError(t, err)
	wrapped, err := json.Marshal(string(inner))
	require.NoError(t, err)

	direct := Flatten(def, "12")
	viaString := FlattenRaw(wrapped, "12")

	assert.Equal(t, direct, viaString)
}

func TestItemIDAcceptsNumbers(t *testing.T) {
	var item EditingItem
	require.NoError(t, json.Unmarshal([]byte(`{"id": 17, "text": "Fix me."}`), &item))
	assert.Equal(t, ItemID("17"), item.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "e9", "text": "Fix me."}`), &item))
	assert.Equal(t, ItemID("e9"), item.ID)
}
