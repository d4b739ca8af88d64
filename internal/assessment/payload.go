package assessment

import (
	"context"

	"github.com/google/uuid"
)

// Attachment is an optional binary (an oral-response recording) submitted
// alongside the answers.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmissionPayload is the single terminal package handed to the finalizer.
// Content carries unwrapped transport values only.
type SubmissionPayload struct {
	AssignmentID uuid.UUID         `json:"assignment_id"`
	Type         string            `json:"type"`
	Content      map[string]string `json:"content"`
	File         *Attachment       `json:"-"`
}

// BuildPayload packages the current answers (and optional attachment) for
// submission. Called once per finalize attempt.
func BuildPayload(assignmentID uuid.UUID, answers AnswerMap, file *Attachment) *SubmissionPayload {
	return &SubmissionPayload{
		AssignmentID: assignmentID,
		Type:         "exam",
		Content:      answers.Unwrap(),
		File:         file,
	}
}

// Finalizer delivers the terminal submission to the grading collaborator.
// Implementations must be safe to call at most once per session; the session
// machine guarantees it never issues concurrent or repeat calls.
type Finalizer interface {
	Finalize(ctx context.Context, payload *SubmissionPayload) error
}

// FinalizerFunc adapts a function to the Finalizer interface.
type FinalizerFunc func(ctx context.Context, payload *SubmissionPayload) error

func (f FinalizerFunc) Finalize(ctx context.Context, payload *SubmissionPayload) error {
	return f(ctx, payload)
}
