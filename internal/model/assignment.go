package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus enumerates the possible states of an assignment.
type AssignmentStatus string

const (
	AssignmentStatusDraft     AssignmentStatus = "DRAFT"
	AssignmentStatusPublished AssignmentStatus = "PUBLISHED"
	AssignmentStatusArchived  AssignmentStatus = "ARCHIVED"
)

// AssignmentType enumerates the kinds of assignment the portal serves.
type AssignmentType string

const (
	AssignmentTypeExam     AssignmentType = "exam"
	AssignmentTypeHomework AssignmentType = "homework"
)

// Assignment represents a timed assessment authored by an instructor.
// Questions holds the four-part paper definition as raw JSON; it is
// parsed and flattened per student at attempt start.
type Assignment struct {
	ID              uuid.UUID        `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description,omitempty"`
	AuthorID        int              `json:"author_id"`
	Type            AssignmentType   `json:"type"`
	DurationMinutes int              `json:"duration_minutes"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	Questions       json.RawMessage  `json:"questions,omitempty"`
	Status          AssignmentStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// AssignmentSummary is the listing row shown in the student portal,
// without the question body.
type AssignmentSummary struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	Type            AssignmentType `json:"type"`
	DurationMinutes int            `json:"duration_minutes"`
	DueDate         *time.Time     `json:"due_date,omitempty"`
	Submitted       bool           `json:"submitted"`
	Score           *float64       `json:"score,omitempty"`
}

// CreateAssignmentRequest is the payload for creating a new assignment.
type CreateAssignmentRequest struct {
	Title           string          `json:"title" binding:"required,min=3,max=255"`
	Description     string          `json:"description" binding:"omitempty,max=2000"`
	Type            AssignmentType  `json:"type" binding:"required,oneof=exam homework"`
	DurationMinutes int             `json:"duration_minutes" binding:"required,min=1,max=480"`
	DueDate         *time.Time      `json:"due_date" binding:"omitempty"`
	Questions       json.RawMessage `json:"questions" binding:"omitempty"`
}

// UpdateAssignmentRequest is the payload for updating an existing assignment.
type UpdateAssignmentRequest struct {
	Title           string          `json:"title" binding:"omitempty,min=3,max=255"`
	Description     *string         `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int             `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	DueDate         *time.Time      `json:"due_date" binding:"omitempty"`
	Questions       json.RawMessage `json:"questions" binding:"omitempty"`
}

// AssignmentPayload is the Redis-cached payload served to students who
// open a published assignment. The raw definition is cached once per
// assignment; shuffling happens per student on top of it.
type AssignmentPayload struct {
	AssignmentID    uuid.UUID       `json:"assignment_id"`
	Title           string          `json:"title"`
	Type            AssignmentType  `json:"type"`
	DurationMinutes int             `json:"duration_minutes"`
	Questions       json.RawMessage `json:"questions"`
}
