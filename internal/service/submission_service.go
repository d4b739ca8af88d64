package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/meridianedu/assess-backend/internal/model"
	"github.com/meridianedu/assess-backend/internal/repository"
	"github.com/meridianedu/assess-backend/internal/response"
	"github.com/rs/zerolog"
)

// SubmissionService handles the instructor-facing grading queue.
type SubmissionService struct {
	submissionRepo *repository.SubmissionRepository
	assignmentRepo *repository.AssignmentRepository
	log            zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	submissionRepo *repository.SubmissionRepository,
	assignmentRepo *repository.AssignmentRepository,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		assignmentRepo: assignmentRepo,
		log:            log.With().Str("component", "submission_service").Logger(),
	}
}

// GetByID retrieves one submission with its full content.
func (s *SubmissionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return s.submissionRepo.GetByID(ctx, id)
}

// ListByAssignment retrieves the grading queue for an assignment.
// Only the assignment's author (or a superadmin) may read it.
func (s *SubmissionService) ListByAssignment(ctx context.Context, assignmentID uuid.UUID, authorID, page, perPage int) ([]model.SubmissionListItem, *response.Pagination, error) {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, nil, err
	}
	if authorID != 0 && assignment.AuthorID != authorID {
		return nil, nil, ErrNotAssignmentAuthor
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	limit := perPage
	offset := (page - 1) * perPage

	items, total, err := s.submissionRepo.ListByAssignmentPaginated(ctx, assignmentID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if items == nil {
		items = []model.SubmissionListItem{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return items, pagination, nil
}

// Grade records a score and feedback on a submission.
func (s *SubmissionService) Grade(ctx context.Context, id uuid.UUID, authorID int, score float64, feedback string) error {
	submission, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	assignment, err := s.assignmentRepo.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return err
	}
	if authorID != 0 && assignment.AuthorID != authorID {
		return ErrNotAssignmentAuthor
	}

	if err := s.submissionRepo.Grade(ctx, id, score, feedback); err != nil {
		return err
	}

	s.log.Info().
		Str("submission_id", id.String()).
		Float64("score", score).
		Msg("Submission graded")
	return nil
}
