package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusGraded     AttemptStatus = "GRADED"
)

// Attempt represents a student's run through a timed assignment.
// StepOrder records the shuffled step sequence that was presented, so
// a reconnecting client resumes with the same layout.
type Attempt struct {
	ID           uuid.UUID     `json:"id"`
	AssignmentID uuid.UUID     `json:"assignment_id"`
	StudentID    int           `json:"student_id"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	Status       AttemptStatus `json:"status"`
	StepOrder    []string      `json:"step_order,omitempty"`
	Score        *float64      `json:"score,omitempty"`
}

// AttemptAnswer is one persisted answer row, keyed by step ID.
type AttemptAnswer struct {
	AttemptID   uuid.UUID `json:"attempt_id"`
	StepID      string    `json:"step_id"`
	AnswerValue string    `json:"answer_value"`
	AnswerIndex *int      `json:"answer_index,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AttemptStateResponse is the resume snapshot returned to a student who
// reloads mid-attempt.
type AttemptStateResponse struct {
	AttemptID        uuid.UUID       `json:"attempt_id"`
	AssignmentID     uuid.UUID       `json:"assignment_id"`
	State            string          `json:"state"`
	StepIndex        int             `json:"step_index"`
	StepCount        int             `json:"step_count"`
	RemainingSeconds int             `json:"remaining_seconds"`
	Answers          json.RawMessage `json:"answers"`
	StartedAt        time.Time       `json:"started_at"`
}
