package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/meridianedu/assess-backend/internal/assessment"
	"github.com/meridianedu/assess-backend/internal/config"
	"github.com/meridianedu/assess-backend/internal/model"
	"github.com/meridianedu/assess-backend/internal/repository"
	"github.com/meridianedu/assess-backend/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain Errors
var (
	ErrNotAssignmentAuthor    = errors.New("not the author of this assignment")
	ErrNoQuestions            = errors.New("assignment has no questions, cannot publish/start")
	ErrAssignmentNotDraft     = errors.New("assignment status is not DRAFT")
	ErrAssignmentNotPublished = errors.New("assignment status is not PUBLISHED")
)

// AssignmentService handles assignment business logic and Redis caching.
type AssignmentService struct {
	assignmentRepo *repository.AssignmentRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(
	assignmentRepo *repository.AssignmentRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *AssignmentService {
	return &AssignmentService{
		assignmentRepo: assignmentRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "assignment_service").Logger(),
	}
}

// GetByID retrieves an assignment by its UUID.
func (s *AssignmentService) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	return s.assignmentRepo.GetByID(ctx, id)
}

// ListByAuthor retrieves assignments, filtered by author if not superadmin.
func (s *AssignmentService) ListByAuthor(ctx context.Context, authorID, page, perPage int) ([]model.Assignment, *response.Pagination, error) {
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

	assignments, total, err := s.assignmentRepo.ListByAuthorPaginated(ctx, authorID, limit, offset)
	if err != nil {
		return nil, nil, err
	}

	if assignments == nil {
		assignments = []model.Assignment{}
	}

	totalPages := (total + perPage - 1) / perPage

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: totalPages,
	}

	return assignments, pagination, nil
}

// ListForStudent returns published assignments with the student's
// submission state attached.
func (s *AssignmentService) ListForStudent(ctx context.Context, studentID int) ([]model.AssignmentSummary, error) {
	items, err := s.assignmentRepo.ListPublishedForStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.AssignmentSummary{}
	}
	return items, nil
}

// Create inserts a new assignment as DRAFT.
func (s *AssignmentService) Create(ctx context.Context, assignment *model.Assignment) error {
	assignment.Status = model.AssignmentStatusDraft
	return s.assignmentRepo.Create(ctx, assignment)
}

// Publish changes assignment status to PUBLISHED and caches the payload in Redis.
// This is the critical path that populates the hot-read lane students hit.
func (s *AssignmentService) Publish(ctx context.Context, assignmentID uuid.UUID, authorID int) error {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("get assignment: %w", err)
	}

	if authorID != 0 && assignment.AuthorID != authorID {
		return ErrNotAssignmentAuthor
	}
	if assignment.Status != model.AssignmentStatusDraft {
		return ErrAssignmentNotDraft
	}

	// Prewarm cache for this assignment.
	if err := s.WarmAssignmentCache(ctx, assignment); err != nil {
		return err
	}

	// Update status in PostgreSQL.
	if err := s.assignmentRepo.UpdateStatus(ctx, assignmentID, model.AssignmentStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("assignment_id", assignmentID.String()).Msg("Assignment published")
	return nil
}

// RefreshCache re-caches the payload for a published assignment.
// Called when questions are updated after publish.
func (s *AssignmentService) RefreshCache(ctx context.Context, assignmentID uuid.UUID, authorID int) error {
	assignment, err := s.assignmentRepo.GetByID(ctx, assignmentID)
	if err != nil {
		return fmt.Errorf("get assignment: %w", err)
	}

	if authorID != 0 && assignment.AuthorID != authorID {
		return ErrNotAssignmentAuthor
	}
	if assignment.Status != model.AssignmentStatusPublished {
		return ErrAssignmentNotPublished
	}

	if err := s.WarmAssignmentCache(ctx, assignment); err != nil {
		return err
	}

	s.log.Info().Str("assignment_id", assignmentID.String()).Msg("Cache refreshed")
	return nil
}

// WarmAssignmentCache loads an assignment's payload from PostgreSQL into Redis.
// The raw four-part definition is validated before caching so a student
// never receives a body the flattener cannot parse.
func (s *AssignmentService) WarmAssignmentCache(ctx context.Context, assignment *model.Assignment) error {
	if len(assignment.Questions) == 0 {
		return ErrNoQuestions
	}
	def, err := assessment.ParseDefinition(assignment.Questions)
	if err != nil {
		return fmt.Errorf("parse definition: %w", err)
	}
	if def.Empty() {
		return ErrNoQuestions
	}

	payload := model.AssignmentPayload{
		AssignmentID:    assignment.ID,
		Title:           assignment.Title,
		Type:            assignment.Type,
		DurationMinutes: assignment.DurationMinutes,
		Questions:       assignment.Questions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AssignmentPayloadKey(assignment.ID.String()), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.AssignmentDurationKey(assignment.ID.String()), assignment.DurationMinutes, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("assignment_id", assignment.ID.String()).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published assignments into Redis on application startup.
// This prevents any lazy-loading race conditions under thundering herd traffic.
func (s *AssignmentService) PrewarmAllCaches(ctx context.Context) error {
	assignments, err := s.assignmentRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published assignments: %w", err)
	}

	if len(assignments) == 0 {
		s.log.Info().Msg("No published assignments to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(assignments)).Msg("Prewarming published assignments...")

	warmed := 0
	for i := range assignments {
		if err := s.WarmAssignmentCache(ctx, &assignments[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("assignment_id", assignments[i].ID.String()).
				Msg("Failed to warm assignment, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(assignments)).
		Msg("Prewarming complete")
	return nil
}

// GetAssignmentPayload retrieves the cached student payload from Redis,
// falling back to PostgreSQL (and re-warming) on a cache miss.
func (s *AssignmentService) GetAssignmentPayload(ctx context.Context, assignmentID uuid.UUID) (*model.AssignmentPayload, error) {
	key := config.CacheKey.AssignmentPayloadKey(assignmentID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("get payload: %w", err)
		}

		// Cache miss: self-heal from the database.
		assignment, dbErr := s.assignmentRepo.GetByID(ctx, assignmentID)
		if dbErr != nil {
			return nil, fmt.Errorf("payload not cached and db lookup failed: %w", dbErr)
		}
		if assignment.Status != model.AssignmentStatusPublished {
			return nil, ErrAssignmentNotPublished
		}
		if warmErr := s.WarmAssignmentCache(ctx, assignment); warmErr != nil {
			return nil, warmErr
		}
		return &model.AssignmentPayload{
			AssignmentID:    assignment.ID,
			Title:           assignment.Title,
			Type:            assignment.Type,
			DurationMinutes: assignment.DurationMinutes,
			Questions:       assignment.Questions,
		}, nil
	}

	var payload model.AssignmentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// Update modifies an existing draft assignment.
func (s *AssignmentService) Update(ctx context.Context, authorID int, assignment *model.Assignment) error {
	existing, err := s.assignmentRepo.GetByID(ctx, assignment.ID)
	if err != nil {
		return err
	}
	if authorID != 0 && existing.AuthorID != authorID {
		return ErrNotAssignmentAuthor
	}
	if existing.Status != model.AssignmentStatusDraft {
		return ErrAssignmentNotDraft
	}
	return s.assignmentRepo.Update(ctx, assignment)
}

// Delete removes a draft assignment.
func (s *AssignmentService) Delete(ctx context.Context, id uuid.UUID, authorID int) error {
	existing, err := s.assignmentRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if authorID != 0 && existing.AuthorID != authorID {
		return ErrNotAssignmentAuthor
	}
	if existing.Status != model.AssignmentStatusDraft {
		return ErrAssignmentNotDraft
	}
	return s.assignmentRepo.Delete(ctx, id)
}
