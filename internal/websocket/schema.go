package websocket

import (
	"encoding/json"

	"github.com/meridianedu/assess-backend/internal/assessment"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionContinue Action = "continue"
	ActionPrevious Action = "previous"
	ActionSubmit   Action = "submit"
	ActionCancel   Action = "cancel"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest records a single answer for a step. The answer is either a
// bare string (free text) or a {value,index} object (option selection).
type AnswerRequest struct {
	Action Action          `json:"action"`
	StepID string          `json:"step_id"`
	Answer json.RawMessage `json:"answer"`
}

// ContinueRequest advances the session to the next step, or opens the
// confirmation prompt on the last one.
type ContinueRequest struct {
	Action Action `json:"action"`
}

// PreviousRequest steps the session back.
type PreviousRequest struct {
	Action Action `json:"action"`
}

// SubmitRequest finalizes the attempt from the confirmation prompt.
type SubmitRequest struct {
	Action         Action `json:"action"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// CancelRequest abandons the confirmation prompt.
type CancelRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventSaved     Event = "saved"
	EventTick      Event = "tick"
	EventSubmitted Event = "submitted"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse carries the full session view after a navigation action or
// on connect.
type StateResponse struct {
	Event Event           `json:"event"`
	View  assessment.View `json:"view"`
}

// SavedResponse acknowledges a recorded answer.
type SavedResponse struct {
	Event  Event  `json:"event"`
	StepID string `json:"step_id"`
}

// TickResponse carries the countdown on every tick. Forced is set on the
// single tick that auto-submitted the attempt.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
	Forced           bool  `json:"forced,omitempty"`
}

// SubmittedResponse announces the terminal state.
type SubmittedResponse struct {
	Event  Event `json:"event"`
	Forced bool  `json:"forced,omitempty"`
}

// ErrorResponse reports an action failure. Warning-level refusals (e.g. an
// incomplete part) leave the session state untouched.
type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
