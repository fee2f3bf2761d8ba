package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
)

const selectTask = `
SELECT id, description, completed, owner, created_at, updated_at
FROM tasks`

var taskSortColumns = map[domain.TaskSortField]string{
	domain.TaskSortCreatedAt:   "created_at",
	domain.TaskSortUpdatedAt:   "updated_at",
	domain.TaskSortDescription: "description",
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) repository.TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	now := time.Now().UTC()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO tasks (id, description, completed, owner, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Description,
		task.Completed,
		task.Owner,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) error {
	updatedAt := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE tasks
SET description=?, completed=?, updated_at=?
WHERE id=? AND owner=?`,
		task.Description,
		task.Completed,
		updatedAt,
		task.ID,
		task.Owner,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("task update rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, repository.ErrNotFound)
	}
	task.UpdatedAt = updatedAt
	return nil
}

func (r *TaskRepository) GetForOwner(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx, selectTask+`
WHERE id=? AND owner=?`,
		id,
		ownerID,
	)
	return scanTask(row)
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string, query domain.TaskQuery) ([]domain.Task, error) {
	stmt, args := buildListQuery(ownerID, query)
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	return tasks, rows.Err()
}

func (r *TaskRepository) DeleteForOwner(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND owner=?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("task delete rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("delete task %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *TaskRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE owner=?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete owner tasks: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("owner tasks rows affected: %w", err)
	}
	return aff, nil
}

func buildListQuery(ownerID string, query domain.TaskQuery) (string, []any) {
	var sb strings.Builder
	sb.WriteString(selectTask)
	sb.WriteString("\nWHERE owner=?")
	args := []any{ownerID}

	if query.Completed != nil {
		sb.WriteString(" AND completed=?")
		args = append(args, *query.Completed)
	}

	column, ok := taskSortColumns[query.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if query.Desc {
		direction = "DESC"
	}
	fmt.Fprintf(&sb, "\nORDER BY %s %s, id ASC", column, direction)

	if query.Limit > 0 || query.Skip > 0 {
		limit := query.Limit
		if limit <= 0 {
			limit = -1
		}
		sb.WriteString("\nLIMIT ? OFFSET ?")
		args = append(args, limit, query.Skip)
	}
	return sb.String(), args
}

func scanTask(scanner interface {
	Scan(dest ...any) error
}) (*domain.Task, error) {
	var task domain.Task
	if err := scanner.Scan(
		&task.ID,
		&task.Description,
		&task.Completed,
		&task.Owner,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &task, nil
}
