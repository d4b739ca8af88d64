package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridianedu/assess-backend/internal/model"
)

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetByAssignmentAndStudent retrieves an attempt for a specific
// assignment-student combination.
func (r *AttemptRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID uuid.UUID, studentID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, assignment_id, student_id, started_at, finished_at, status, step_order, score
		 FROM attempts
		 WHERE assignment_id = $1 AND student_id = $2`, assignmentID, studentID,
	).Scan(&a.ID, &a.AssignmentID, &a.StudentID, &a.StartedAt, &a.FinishedAt, &a.Status, &a.StepOrder, &a.Score)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new attempt. A re-entry while one already exists is a
// no-op thanks to the unique constraint, so callers re-read afterwards.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (assignment_id, student_id, status, step_order)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (assignment_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		a.AssignmentID, a.StudentID, model.AttemptStatusInProgress, a.StepOrder,
	).Scan(&a.ID, &a.StartedAt)
}

// UpdateStepOrder persists the shuffled step sequence for an attempt.
func (r *AttemptRepository) UpdateStepOrder(ctx context.Context, id uuid.UUID, stepOrder []string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET step_order = $1 WHERE id = $2`,
		stepOrder, id)
	return err
}

// MarkSubmitted flips an attempt to SUBMITTED with a finish timestamp.
func (r *AttemptRepository) MarkSubmitted(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = $1, finished_at = $2
		 WHERE id = $3 AND status = $4`,
		model.AttemptStatusSubmitted, now, id, model.AttemptStatusInProgress)
	return err
}

// ListByStudent retrieves all attempts for a given student.
func (r *AttemptRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, assignment_id, student_id, started_at, finished_at, status, step_order, score
		 FROM attempts
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.AssignmentID, &a.StudentID, &a.StartedAt, &a.FinishedAt, &a.Status, &a.StepOrder, &a.Score); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// UpsertAnswer stores or replaces a single answer for an attempt.
// Used by the answer persistence worker's per-item fallback path.
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, ans *model.AttemptAnswer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, step_id, answer_value, answer_index, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (attempt_id, step_id)
		 DO UPDATE SET answer_value = EXCLUDED.answer_value,
		               answer_index = EXCLUDED.answer_index,
		               updated_at = NOW()`,
		ans.AttemptID, ans.StepID, ans.AnswerValue, ans.AnswerIndex)
	return err
}

// BulkUpsertAnswers stores a batch of answers in one round trip using UNNEST.
func (r *AttemptRepository) BulkUpsertAnswers(ctx context.Context, answers []model.AttemptAnswer) error {
	if len(answers) == 0 {
		return nil
	}

	attemptIDs := make([]uuid.UUID, len(answers))
	stepIDs := make([]string, len(answers))
	values := make([]string, len(answers))
	indexes := make([]*int, len(answers))
	for i, a := range answers {
		attemptIDs[i] = a.AttemptID
		stepIDs[i] = a.StepID
		values[i] = a.AnswerValue
		indexes[i] = a.AnswerIndex
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, step_id, answer_value, answer_index, updated_at)
		 SELECT u.attempt_id, u.step_id, u.answer_value, u.answer_index, NOW()
		 FROM UNNEST($1::uuid[], $2::text[], $3::text[], $4::int[])
		      AS u(attempt_id, step_id, answer_value, answer_index)
		 ON CONFLICT (attempt_id, step_id)
		 DO UPDATE SET answer_value = EXCLUDED.answer_value,
		               answer_index = EXCLUDED.answer_index,
		               updated_at = NOW()`,
		attemptIDs, stepIDs, values, indexes)
	return err
}

// ListAnswers retrieves every persisted answer for an attempt, keyed by step.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT attempt_id, step_id, answer_value, answer_index, updated_at
		 FROM attempt_answers
		 WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.AttemptID, &a.StepID, &a.AnswerValue, &a.AnswerIndex, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// BulkMarkSubmitted flips a batch of attempts to SUBMITTED in one statement.
// Used by the completion worker's batched flush.
func (r *AttemptRepository) BulkMarkSubmitted(ctx context.Context, ids []uuid.UUID, finishedAt []time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts AS a
		 SET status = $1, finished_at = u.finished_at
		 FROM UNNEST($2::uuid[], $3::timestamptz[]) AS u(id, finished_at)
		 WHERE a.id = u.id AND a.status = $4`,
		model.AttemptStatusSubmitted, ids, finishedAt, model.AttemptStatusInProgress)
	return err
}
