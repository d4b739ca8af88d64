package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// State enumerates the session lifecycle.
//
//	Loading → Presenting → Confirming → Submitting → Submitted
//
// There is no terminal failure state: a failed submit restores the pre-submit
// state so the student may retry.
type State string

const (
	StateLoading    State = "LOADING"
	StatePresenting State = "PRESENTING"
	StateConfirming State = "CONFIRMING"
	StateSubmitting State = "SUBMITTING"
	StateSubmitted  State = "SUBMITTED"
)

// Session errors. ErrPartIncomplete is a warning-level refusal: the state is
// left unchanged and the caller surfaces it to the student.
var (
	ErrNoSteps          = errors.New("no steps to present")
	ErrAlreadyBegun     = errors.New("session already begun")
	ErrNotPresenting    = errors.New("session is not presenting a step")
	ErrNotConfirming    = errors.New("session is not awaiting confirmation")
	ErrAtFirstStep      = errors.New("already at the first step")
	ErrUnknownStep      = errors.New("unknown step id")
	ErrPartIncomplete   = errors.New("current part has unanswered steps")
	ErrAlreadySubmitted = errors.New("session already submitted")
	ErrSubmitInFlight   = errors.New("a submission is already in flight")
)

// Session is the server-owned state machine for one student's timed attempt.
// It tracks the current step, recorded answers and remaining seconds, enforces
// part-completion gating, and guarantees at most one finalize call.
//
// All methods are safe for concurrent use; the finalize network call runs with
// the lock released so ticks and reads are never blocked behind it.
type Session struct {
	mu sync.Mutex

	assignmentID uuid.UUID
	studentID    string
	steps        []Step
	idx          int
	answers      AnswerMap
	attachment   *Attachment
	remaining    int
	state        State
	finalizer    Finalizer

	inFlight bool
	// forced latches once the countdown reaches zero; the timer never fires
	// a second submission even if the forced one failed.
	forced bool
}

// View is an immutable snapshot for transport to the client.
type View struct {
	State            State             `json:"state"`
	StepIndex        int               `json:"step_index"`
	TotalSteps       int               `json:"total_steps"`
	Step             *Step             `json:"step,omitempty"`
	StepInPart       int               `json:"step_in_part"`
	PartSize         int               `json:"part_size"`
	RemainingSeconds int               `json:"remaining_seconds"`
	Answers          map[string]string `json:"answers"`
}

// NewSession creates a session in Loading. Begin starts presentation.
func NewSession(assignmentID uuid.UUID, studentID string, finalizer Finalizer) *Session {
	return &Session{
		assignmentID: assignmentID,
		studentID:    studentID,
		answers:      make(AnswerMap),
		state:        StateLoading,
		finalizer:    finalizer,
	}
}

// Begin transitions Loading → Presenting(0) once the flattened sequence is
// non-empty and the countdown has been seeded. The timer is never re-seeded
// mid-session.
func (s *Session) Begin(steps []Step, durationSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoading {
		return fmt.Errorf("begin from %s: %w", s.state, ErrAlreadyBegun)
	}
	if len(steps) == 0 {
		return ErrNoSteps
	}

	s.steps = steps
	s.idx = 0
	s.remaining = durationSeconds
	s.state = StatePresenting
	return nil
}

// RecordAnswer stores the answer for a step. Only the currently presented
// sequence's steps are accepted.
func (s *Session) RecordAnswer(stepID string, ans Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePresenting && s.state != StateConfirming {
		return ErrNotPresenting
	}
	if !s.hasStep(stepID) {
		return fmt.Errorf("%w: %s", ErrUnknownStep, stepID)
	}

	s.answers[stepID] = ans
	return nil
}

// RestoreAnswers pre-loads autosaved answers on resume, before Begin's
// Presenting state is driven by the student. Unknown step ids are dropped.
func (s *Session) RestoreAnswers(saved AnswerMap) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range saved {
		if s.hasStep(id) {
			s.answers[id] = a
		}
	}
}

// SetAttachment registers the oral-response recording to ship with the
// terminal submission.
func (s *Session) SetAttachment(att *Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachment = att
}

// Continue advances to the next step. Crossing into a new part is a hard
// gate: every step of the current part must be answered, otherwise the index
// is left unchanged and ErrPartIncomplete is returned. On the last step it
// opens confirmation instead of advancing.
func (s *Session) Continue() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePresenting {
		return s.viewLocked(), ErrNotPresenting
	}

	if s.idx == len(s.steps)-1 {
		s.state = StateConfirming
		return s.viewLocked(), nil
	}

	cur := s.steps[s.idx]
	next := s.steps[s.idx+1]
	if next.Part != cur.Part && !s.partCompleteLocked(cur.Part) {
		return s.viewLocked(), fmt.Errorf("%w: part %d", ErrPartIncomplete, cur.Part)
	}

	s.idx++
	return s.viewLocked(), nil
}

// Previous steps back. Always allowed except at the first step.
func (s *Session) Previous() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePresenting {
		return s.viewLocked(), ErrNotPresenting
	}
	if s.idx == 0 {
		return s.viewLocked(), ErrAtFirstStep
	}

	s.idx--
	return s.viewLocked(), nil
}

// CancelConfirm abandons the confirmation prompt and returns to the last
// step with no side effects.
func (s *Session) CancelConfirm() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfirming {
		return s.viewLocked(), ErrNotConfirming
	}

	s.state = StatePresenting
	return s.viewLocked(), nil
}

// Submit finalizes from the confirmation prompt. It is also the manual retry
// path once the countdown has expired (the timer never retries on its own).
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	retryAfterTimeout := s.forced &&
		s.state != StateSubmitted && s.state != StateSubmitting

	if s.state != StateConfirming && !retryAfterTimeout {
		return ErrNotConfirming
	}

	return s.finalizeLocked(ctx, false)
}

// TickResult reports the outcome of one countdown tick.
type TickResult struct {
	RemainingSeconds int
	// ForcedSubmit is set on the single tick that triggered auto-submission.
	ForcedSubmit bool
	// Err carries the finalize failure of a forced submit, if any.
	Err error
}

// Tick decrements the countdown by one second. On reaching exactly zero it
// issues the forced submission once, bypassing gating and confirmation, with
// whatever answers exist. Subsequent ticks are inert, as is any tick after
// the session turned terminal.
func (s *Session) Tick(ctx context.Context) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateLoading || s.state == StateSubmitted || s.forced {
		return TickResult{RemainingSeconds: s.remaining}
	}

	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		return TickResult{RemainingSeconds: s.remaining}
	}

	s.forced = true
	err := s.finalizeLocked(ctx, true)
	return TickResult{RemainingSeconds: 0, ForcedSubmit: true, Err: err}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the transport view of the session.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Answers returns a copy of the recorded answers.
func (s *Session) Answers() AnswerMap {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(AnswerMap, len(s.answers))
	for id, a := range s.answers {
		out[id] = a
	}
	return out
}

// ─── Internal ───────────────────────────────────────────────────────

// finalizeLocked performs the at-most-once submission. Caller holds the lock;
// it is released for the duration of the network call and re-acquired before
// returning. A forced (timeout) call that finds a submit already in flight or
// the session terminal is silently ignored.
func (s *Session) finalizeLocked(ctx context.Context, forced bool) error {
	if s.state == StateSubmitted {
		if forced {
			return nil
		}
		return ErrAlreadySubmitted
	}
	if s.inFlight {
		if forced {
			return nil
		}
		return ErrSubmitInFlight
	}

	prev := s.state
	s.state = StateSubmitting
	s.inFlight = true
	payload := BuildPayload(s.assignmentID, s.answers, s.attachment)

	s.mu.Unlock()
	err := s.finalizer.Finalize(ctx, payload)
	s.mu.Lock()

	s.inFlight = false
	if err != nil {
		// Recoverable: restore the pre-submit state for a manual retry.
		s.state = prev
		return err
	}

	s.state = StateSubmitted
	return nil
}

func (s *Session) hasStep(id string) bool {
	for i := range s.steps {
		if s.steps[i].ID == id {
			return true
		}
	}
	return false
}

func (s *Session) partCompleteLocked(part int) bool {
	for i := range s.steps {
		if s.steps[i].Part != part {
			continue
		}
		if !s.answers[s.steps[i].ID].Answered() {
			return false
		}
	}
	return true
}

func (s *Session) viewLocked() View {
	v := View{
		State:            s.state,
		StepIndex:        s.idx,
		TotalSteps:       len(s.steps),
		RemainingSeconds: s.remaining,
		Answers:          s.answers.Unwrap(),
	}

	if len(s.steps) == 0 {
		return v
	}

	step := s.steps[s.idx]
	v.Step = &step

	for i := range s.steps {
		if s.steps[i].Part != step.Part {
			continue
		}
		v.PartSize++
		if i <= s.idx {
			v.StepInPart++
		}
	}

	return v
}
