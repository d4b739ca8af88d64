package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Submission is the final, immutable record of a completed assignment.
// At most one exists per (assignment, student) pair; retried finalize
// calls with the same idempotency key collapse into it.
type Submission struct {
	ID             uuid.UUID       `json:"id"`
	AssignmentID   uuid.UUID       `json:"assignment_id"`
	StudentID      int             `json:"student_id"`
	AttemptID      uuid.UUID       `json:"attempt_id"`
	Content        json.RawMessage `json:"content"`
	FilePath       string          `json:"file_path,omitempty"`
	IdempotencyKey string          `json:"-"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	Score          *float64        `json:"score,omitempty"`
	Feedback       string          `json:"feedback,omitempty"`
	GradedAt       *time.Time      `json:"graded_at,omitempty"`
}

// SubmissionListItem is the grading-queue row shown to instructors.
type SubmissionListItem struct {
	ID           uuid.UUID  `json:"id"`
	AssignmentID uuid.UUID  `json:"assignment_id"`
	StudentID    int        `json:"student_id"`
	StudentName  string     `json:"student_name"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Score        *float64   `json:"score,omitempty"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
}

// GradeSubmissionRequest is the payload an instructor posts to score a
// submission.
type GradeSubmissionRequest struct {
	Score    float64 `json:"score" binding:"min=0,max=100"`
	Feedback string  `json:"feedback" binding:"omitempty,max=4000"`
}
