package service

import (
	"context"
	"strings"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
	"task-manager/internal/validation"
)

// NewTask carries the fields accepted when creating a task.
type NewTask struct {
	Description string
	Completed   bool
}

// TaskUpdate lists the task fields a caller may change; nil means untouched.
type TaskUpdate struct {
	Description *string
	Completed   *bool
}

// TaskService coordinates owner-scoped task operations backed by the repository.
type TaskService interface {
	Create(ctx context.Context, ownerID string, in NewTask) (*domain.Task, error)
	Get(ctx context.Context, ownerID, id string) (*domain.Task, error)
	List(ctx context.Context, ownerID string, query domain.TaskQuery) ([]domain.Task, error)
	Update(ctx context.Context, ownerID, id string, in TaskUpdate) (*domain.Task, error)
	Delete(ctx context.Context, ownerID, id string) (*domain.Task, error)
}

type taskService struct {
	tasks repository.TaskRepository
}

func NewTaskService(tasks repository.TaskRepository) TaskService {
	return &taskService{tasks: tasks}
}

func (s *taskService) Create(ctx context.Context, ownerID string, in NewTask) (*domain.Task, error) {
	task := &domain.Task{
		Description: strings.TrimSpace(in.Description),
		Completed:   in.Completed,
		Owner:       ownerID,
	}
	if err := validation.ValidateTask(task); err != nil {
		return nil, err
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) Get(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	return s.tasks.GetForOwner(ctx, ownerID, id)
}

func (s *taskService) List(ctx context.Context, ownerID string, query domain.TaskQuery) ([]domain.Task, error) {
	return s.tasks.ListByOwner(ctx, ownerID, query)
}

func (s *taskService) Update(ctx context.Context, ownerID, id string, in TaskUpdate) (*domain.Task, error) {
	task, err := s.tasks.GetForOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Completed != nil {
		task.Completed = *in.Completed
	}
	if err := validation.ValidateTask(task); err != nil {
		return nil, err
	}
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *taskService) Delete(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	task, err := s.tasks.GetForOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.DeleteForOwner(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return task, nil
}
