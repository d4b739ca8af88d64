package assessment

import "fmt"

// StepType tags the kind of answerable step a flattened item became.
type StepType string

const (
	StepEditing      StepType = "editing"
	StepEssay        StepType = "essay"
	StepReadingMCQ   StepType = "reading_mcq"
	StepListeningMCQ StepType = "listening_mcq"
	StepOral         StepType = "oral"
)

// Step is one answerable unit of a flattened assessment. Steps are derived
// fresh for every attempt from the definition plus the student seed, held in
// memory only, and discarded when the attempt ends.
type Step struct {
	ID           string   `json:"id"`
	Part         int      `json:"part"`
	Type         StepType `json:"type"`
	QuestionText string   `json:"question_text,omitempty"`
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Passage      string   `json:"passage,omitempty"`
	AudioURL     string   `json:"audio_url,omitempty"`
	Options      []string `json:"options,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Badge        string   `json:"badge"`
}

// Seed offsets per list. Each shuffled list gets its own offset so the shared
// base seed never cross-contaminates between lists of different lengths.
const (
	offsetEditing      = 1
	offsetReading      = 2
	offsetListening    = 3
	offsetReadingOpt   = 20
	offsetListeningOpt = 30
)

// Flatten expands a definition into the linear, per-student step sequence.
// Paper order is fixed (1, 2, 3, 4 — concatenated, never interleaved); item
// order within papers 1-3 and option order within MCQs are deterministic
// per-student shuffles. A nil definition yields no steps, which callers treat
// as "not ready" rather than an error.
func Flatten(def *Definition, studentID string) []Step {
	if def == nil {
		return nil
	}

	seed := Seed(studentID)
	var steps []Step

	// Paper 1: writing (editing items, then the unshuffled essay singleton).
	if p := def.Paper1; p != nil {
		for _, item := range Shuffle(p.Editing, seed+offsetEditing) {
			steps = append(steps, Step{
				ID:           fmt.Sprintf("p1_editing_%s", item.ID),
				Part:         1,
				Type:         StepEditing,
				QuestionText: item.Text,
				Badge:        "Grammar",
			})
		}
		if p.Essay != nil {
			steps = append(steps, Step{
				ID:          "p1_essay",
				Part:        1,
				Type:        StepEssay,
				Title:       "Writing Task",
				Description: p.Essay.Prompt,
				Badge:       "Essay",
			})
		}
	}

	// Paper 2: reading. Option order is keyed by the question's position in
	// the shuffled list, not its source position.
	if p := def.Paper2; p != nil {
		for idx, q := range Shuffle(p.Questions, seed+offsetReading) {
			steps = append(steps, Step{
				ID:           fmt.Sprintf("p2_q_%s", q.ID),
				Part:         2,
				Type:         StepReadingMCQ,
				Passage:      p.Passage,
				QuestionText: q.QuestionText,
				Options:      Shuffle(q.Options, seed+offsetReadingOpt+int64(idx)),
				Badge:        "Reading",
			})
		}
	}

	// Paper 3: listening. Same shape as reading with an audio reference.
	if p := def.Paper3; p != nil {
		for idx, q := range Shuffle(p.Questions, seed+offsetListening) {
			steps = append(steps, Step{
				ID:           fmt.Sprintf("p3_q_%s", q.ID),
				Part:         3,
				Type:         StepListeningMCQ,
				AudioURL:     p.AudioURL,
				QuestionText: q.QuestionText,
				Options:      Shuffle(q.Options, seed+offsetListeningOpt+int64(idx)),
				Badge:        "Listening",
			})
		}
	}

	// Paper 4: oral singleton, never shuffled.
	if p := def.Paper4; p != nil {
		steps = append(steps, Step{
			ID:           "p4_oral",
			Part:         4,
			Type:         StepOral,
			Passage:      p.Passage,
			Instructions: p.Instructions,
			Badge:        "Oral",
		})
	}

	return steps
}

// FlattenRaw parses and flattens in one go. Malformed definitions yield an
// empty sequence — the caller surfaces "not ready", not a hard error.
func FlattenRaw(raw []byte, studentID string) []Step {
	def, err := ParseDefinition(raw)
	if err != nil {
		return nil
	}
	return Flatten(def, studentID)
}

// StepIDs projects the sequence to its id list, the shape persisted on the
// attempt for audit.
func StepIDs(steps []Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}
