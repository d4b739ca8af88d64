package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridianedu/assess-backend/internal/model"
)

// AssignmentRepository handles assignment data access.
type AssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

// GetByID retrieves an assignment by its UUID, including the question body.
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	a := &model.Assignment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, author_id, type, duration_minutes,
		        due_date, questions, status, created_at, updated_at
		 FROM assignments WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.Description, &a.AuthorID, &a.Type, &a.DurationMinutes,
		&a.DueDate, &a.Questions, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByAuthorPaginated retrieves assignments filtered by author with pagination.
// Pass authorID=0 to list all assignments (superadmin).
func (r *AssignmentRepository) ListByAuthorPaginated(ctx context.Context, authorID, limit, offset int) ([]model.Assignment, int, error) {
	countQuery := `SELECT COUNT(*) FROM assignments`
	var countArgs []any
	if authorID > 0 {
		countQuery += ` WHERE author_id = $1`
		countArgs = append(countArgs, authorID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, title, description, author_id, type, duration_minutes,
	                 due_date, status, created_at, updated_at
	          FROM assignments`
	var args []any
	argIdx := 1

	if authorID > 0 {
		query += ` WHERE author_id = $1`
		args = append(args, authorID)
		argIdx++
	}

	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.AuthorID, &a.Type, &a.DurationMinutes,
			&a.DueDate, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		assignments = append(assignments, a)
	}
	return assignments, total, rows.Err()
}

// ListPublishedForStudent returns published assignments together with the
// student's submission state for the portal listing.
func (r *AssignmentRepository) ListPublishedForStudent(ctx context.Context, studentID int) ([]model.AssignmentSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.title, a.description, a.type, a.duration_minutes, a.due_date,
		        s.id IS NOT NULL AS submitted, s.score
		 FROM assignments a
		 LEFT JOIN submissions s ON s.assignment_id = a.id AND s.student_id = $1
		 WHERE a.status = $2
		 ORDER BY a.due_date NULLS LAST, a.created_at DESC`,
		studentID, model.AssignmentStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.AssignmentSummary
	for rows.Next() {
		var it model.AssignmentSummary
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.Type, &it.DurationMinutes,
			&it.DueDate, &it.Submitted, &it.Score); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO assignments (title, description, author_id, type, duration_minutes, due_date, questions, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		a.Title, a.Description, a.AuthorID, a.Type, a.DurationMinutes,
		a.DueDate, a.Questions, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// Update modifies an assignment's editable fields.
func (r *AssignmentRepository) Update(ctx context.Context, a *model.Assignment) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assignments
		 SET title = $1, description = $2, duration_minutes = $3, due_date = $4,
		     questions = $5, updated_at = NOW()
		 WHERE id = $6`,
		a.Title, a.Description, a.DurationMinutes, a.DueDate, a.Questions, a.ID)
	return err
}

// UpdateStatus updates an assignment's status.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AssignmentStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assignments SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// Delete removes a draft assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	return err
}

// ListPublished returns all assignments with PUBLISHED status.
// Used for cache prewarming on application startup.
func (r *AssignmentRepository) ListPublished(ctx context.Context) ([]model.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, author_id, type, duration_minutes,
		        due_date, questions, status, created_at, updated_at
		 FROM assignments WHERE status = $1
		 ORDER BY created_at DESC`, model.AssignmentStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.AuthorID, &a.Type, &a.DurationMinutes,
			&a.DueDate, &a.Questions, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}
