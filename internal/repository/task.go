package repository

import (
	"context"

	"task-manager/internal/domain"
)

// TaskRepository exposes persistence operations for Task records, always scoped to an owner.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	GetForOwner(ctx context.Context, ownerID, id string) (*domain.Task, error)
	ListByOwner(ctx context.Context, ownerID string, query domain.TaskQuery) ([]domain.Task, error)
	DeleteForOwner(ctx context.Context, ownerID, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
}
