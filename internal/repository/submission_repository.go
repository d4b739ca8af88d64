package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridianedu/assess-backend/internal/model"
)

// SubmissionRepository handles submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// GetByID retrieves a submission by its UUID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, assignment_id, student_id, attempt_id, content, file_path,
		        idempotency_key, submitted_at, score, feedback, graded_at
		 FROM submissions WHERE id = $1`, id,
	).Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.AttemptID, &s.Content, &s.FilePath,
		&s.IdempotencyKey, &s.SubmittedAt, &s.Score, &s.Feedback, &s.GradedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByAssignmentAndStudent retrieves the single submission for an
// assignment-student pair, if one exists.
func (r *SubmissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.Submission, error) {
	s := &model.Submission{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, assignment_id, student_id, attempt_id, content, file_path,
		        idempotency_key, submitted_at, score, feedback, graded_at
		 FROM submissions
		 WHERE assignment_id = $1 AND student_id = $2`, assignmentID, studentID,
	).Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.AttemptID, &s.Content, &s.FilePath,
		&s.IdempotencyKey, &s.SubmittedAt, &s.Score, &s.Feedback, &s.GradedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a submission. The unique constraint on
// (assignment_id, student_id) makes concurrent finalize calls collapse
// into a single row; the loser of the race gets the existing row back.
// The bool result reports whether a new row was actually inserted.
func (r *SubmissionRepository) Create(ctx context.Context, s *model.Submission) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO submissions (assignment_id, student_id, attempt_id, content, file_path, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (assignment_id, student_id) DO NOTHING
		 RETURNING id, submitted_at`,
		s.AssignmentID, s.StudentID, s.AttemptID, s.Content, s.FilePath, s.IdempotencyKey,
	).Scan(&s.ID, &s.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, getErr := r.GetByAssignmentAndStudent(ctx, s.AssignmentID, s.StudentID)
			if getErr != nil {
				return false, getErr
			}
			*s = *existing
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListByAssignmentPaginated retrieves the grading queue for one assignment.
func (r *SubmissionRepository) ListByAssignmentPaginated(ctx context.Context, assignmentID uuid.UUID, limit, offset int) ([]model.SubmissionListItem, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE assignment_id = $1`, assignmentID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT s.id, s.assignment_id, s.student_id, st.name,
	                 s.submitted_at, s.score, s.graded_at
	          FROM submissions s
	          JOIN students st ON s.student_id = st.id
	          WHERE s.assignment_id = $1
	          ORDER BY s.submitted_at ASC
	          LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, assignmentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []model.SubmissionListItem
	for rows.Next() {
		var it model.SubmissionListItem
		if err := rows.Scan(&it.ID, &it.AssignmentID, &it.StudentID, &it.StudentName,
			&it.SubmittedAt, &it.Score, &it.GradedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// Grade records an instructor's score and feedback on a submission and
// mirrors the score onto the underlying attempt.
func (r *SubmissionRepository) Grade(ctx context.Context, id uuid.UUID, score float64, feedback string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var attemptID uuid.UUID
	err = tx.QueryRow(ctx,
		`UPDATE submissions
		 SET score = $1, feedback = $2, graded_at = NOW()
		 WHERE id = $3
		 RETURNING attempt_id`,
		score, feedback, id,
	).Scan(&attemptID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE attempts SET status = $1, score = $2 WHERE id = $3`,
		model.AttemptStatusGraded, score, attemptID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
