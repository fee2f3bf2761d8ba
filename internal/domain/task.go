package domain

import "time"

// Task is a to-do item owned by a single user.
type Task struct {
	ID          string    `json:"_id"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	Owner       string    `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskSortField names the columns a task listing can be ordered by.
type TaskSortField string

const (
	TaskSortCreatedAt   TaskSortField = "createdAt"
	TaskSortUpdatedAt   TaskSortField = "updatedAt"
	TaskSortDescription TaskSortField = "description"
)

// TaskQuery filters and pages the tasks of one owner.
type TaskQuery struct {
	Completed *bool
	Limit     int
	Skip      int
	SortBy    TaskSortField
	Desc      bool
}
