package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Answer is the tagged variant behind a step's recorded answer: either free
// text or a chosen option tracked with its on-screen index. The index exists
// only so the client can re-highlight the selection; graders only ever see
// the bare value.
type Answer struct {
	Value string
	Index int
	// Choice marks an option selection; false means free text.
	Choice bool
}

// Text builds a free-text answer.
func Text(value string) Answer {
	return Answer{Value: value}
}

// Choice builds an option-selection answer.
func Choice(value string, index int) Answer {
	return Answer{Value: value, Index: index, Choice: true}
}

// Answered reports whether the answer carries a non-empty value. An empty
// text answer does not satisfy part-completion gating.
func (a Answer) Answered() bool { return a.Value != "" }

// TransportValue is what the grader receives: the bare value, index stripped.
func (a Answer) TransportValue() string { return a.Value }

type choiceJSON struct {
	Value string `json:"value"`
	Index int    `json:"index"`
}

// UnmarshalJSON accepts either a bare JSON string (free text) or the
// {"value","index"} shape the portal records for radio selections.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty answer")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Text(s)
		return nil
	}

	var c choiceJSON
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("answer must be string or {value,index}: %w", err)
	}
	*a = Choice(c.Value, c.Index)
	return nil
}

// MarshalJSON preserves the original shape so cached answers round-trip.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Choice {
		return json.Marshal(choiceJSON{Value: a.Value, Index: a.Index})
	}
	return json.Marshal(a.Value)
}

// AnswerMap keys recorded answers by step id.
type AnswerMap map[string]Answer

// Unwrap produces the transport map sent to the grading collaborator:
// step id to bare value, {value,index} shapes stripped to value.
func (m AnswerMap) Unwrap() map[string]string {
	out := make(map[string]string, len(m))
	for id, a := range m {
		out[id] = a.TransportValue()
	}
	return out
}
