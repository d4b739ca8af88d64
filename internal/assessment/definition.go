package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Definition is the nested multi-part exam structure authored by instructors.
// Every paper is optional; a definition with no papers flattens to zero steps.
// The structure is immutable once fetched for an attempt.
type Definition struct {
	Paper1 *WritingPaper   `json:"paper1,omitempty"`
	Paper2 *ReadingPaper   `json:"paper2,omitempty"`
	Paper3 *ListeningPaper `json:"paper3,omitempty"`
	Paper4 *OralPaper      `json:"paper4,omitempty"`
}

// WritingPaper holds sentence-editing items and an optional essay prompt.
type WritingPaper struct {
	Editing []EditingItem `json:"editing,omitempty"`
	Essay   *EssayPrompt  `json:"essay,omitempty"`
}

// EditingItem is a single sentence the student must correct.
type EditingItem struct {
	ID   ItemID `json:"id"`
	Text string `json:"text"`
}

// EssayPrompt is the free-writing task of paper 1.
type EssayPrompt struct {
	Prompt string `json:"prompt"`
}

// ReadingPaper is a shared passage with multiple-choice questions.
type ReadingPaper struct {
	Passage   string        `json:"passage"`
	Questions []MCQQuestion `json:"questions,omitempty"`
}

// ListeningPaper is an audio reference with multiple-choice questions.
type ListeningPaper struct {
	AudioURL  string        `json:"audioUrl"`
	Questions []MCQQuestion `json:"questions,omitempty"`
}

// MCQQuestion is a multiple-choice question shared by papers 2 and 3.
type MCQQuestion struct {
	ID           ItemID   `json:"id"`
	QuestionText string   `json:"questionText"`
	Options      []string `json:"options,omitempty"`
}

// OralPaper is a read-aloud passage with examiner instructions.
type OralPaper struct {
	Passage      string `json:"passage"`
	Instructions string `json:"instructions"`
}

// ItemID tolerates both numeric and string item ids, since authored
// definitions have carried either over the years.
type ItemID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty item id")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("item id must be string or number: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

// MarshalJSON emits the id as a JSON string.
func (id ItemID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id ItemID) String() string { return string(id) }

// Empty reports whether the definition carries no papers at all.
func (d *Definition) Empty() bool {
	if d == nil {
		return true
	}
	return d.Paper1 == nil && d.Paper2 == nil && d.Paper3 == nil && d.Paper4 == nil
}

// ParseDefinition decodes a raw exam definition. The legacy store kept the
// definition as a JSON string inside a JSON column, so a double-encoded body
// (a JSON string containing JSON) is unwrapped transparently.
func ParseDefinition(raw []byte) (*Definition, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty definition")
	}

	// Double-encoded: the body is a JSON string holding the real object.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("unwrap definition string: %w", err)
		}
		raw = []byte(inner)
	}

	var def Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	return &def, nil
}
