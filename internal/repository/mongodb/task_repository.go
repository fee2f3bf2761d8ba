package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
)

type taskDocument struct {
	ID          string    `bson:"_id"`
	Description string    `bson:"description"`
	Completed   bool      `bson:"completed"`
	Owner       string    `bson:"owner"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

type TaskRepository struct {
	coll *mongo.Collection
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	now := time.Now().UTC()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = now
	task.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, taskDocument(*task)); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Update(ctx context.Context, task *domain.Task) error {
	updatedAt := time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": task.ID, "owner": task.Owner},
		bson.M{"$set": bson.M{
			"description": task.Description,
			"completed":   task.Completed,
			"updatedAt":   updatedAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update task %s: %w", task.ID, repository.ErrNotFound)
	}
	task.UpdatedAt = updatedAt
	return nil
}

func (r *TaskRepository) GetForOwner(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	var doc taskDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id, "owner": ownerID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("task: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	task := domain.Task(doc)
	return &task, nil
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string, query domain.TaskQuery) ([]domain.Task, error) {
	opts := options.Find().SetSort(taskSort(query))
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}
	if query.Skip > 0 {
		opts.SetSkip(int64(query.Skip))
	}

	cursor, err := r.coll.Find(ctx, taskFilter(ownerID, query), opts)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	tasks := make([]domain.Task, 0, len(docs))
	for _, doc := range docs {
		tasks = append(tasks, domain.Task(doc))
	}
	return tasks, nil
}

func (r *TaskRepository) DeleteForOwner(ctx context.Context, ownerID, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "owner": ownerID})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete task %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *TaskRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"owner": ownerID})
	if err != nil {
		return 0, fmt.Errorf("delete owner tasks: %w", err)
	}
	return res.DeletedCount, nil
}

func taskFilter(ownerID string, query domain.TaskQuery) bson.M {
	filter := bson.M{"owner": ownerID}
	if query.Completed != nil {
		filter["completed"] = *query.Completed
	}
	return filter
}

func taskSort(query domain.TaskQuery) bson.D {
	field := string(query.SortBy)
	switch query.SortBy {
	case domain.TaskSortCreatedAt, domain.TaskSortUpdatedAt, domain.TaskSortDescription:
	default:
		field = string(domain.TaskSortCreatedAt)
	}
	direction := 1
	if query.Desc {
		direction = -1
	}
	return bson.D{{Key: field, Value: direction}, {Key: "_id", Value: 1}}
}
