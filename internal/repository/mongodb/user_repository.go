package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"task-manager/internal/domain"
	"task-manager/internal/repository"
)

type tokenDocument struct {
	Token     string    `bson:"token"`
	CreatedAt time.Time `bson:"createdAt"`
}

type userDocument struct {
	ID        string          `bson:"_id"`
	Name      string          `bson:"name,omitempty"`
	Age       *int            `bson:"age,omitempty"`
	Email     string          `bson:"email"`
	Password  string          `bson:"password"`
	Tokens    []tokenDocument `bson:"tokens"`
	Avatar    []byte          `bson:"avatar,omitempty"`
	CreatedAt time.Time       `bson:"createdAt"`
	UpdatedAt time.Time       `bson:"updatedAt"`
}

type UserRepository struct {
	coll *mongo.Collection
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, toUserDocument(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("insert user: %w", repository.ErrDuplicateEmail)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	prev := user.UpdatedAt
	user.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": user.ID}, toUserDocument(user))
	if err != nil {
		user.UpdatedAt = prev
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("update user: %w", repository.ErrDuplicateEmail)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		user.UpdatedAt = prev
		return fmt.Errorf("update user %s: %w", user.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) GetByIDAndToken(ctx context.Context, id, token string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id, "tokens.token": token})
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete user %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return fromUserDocument(&doc), nil
}

func toUserDocument(u *domain.User) *userDocument {
	doc := &userDocument{
		ID:        u.ID,
		Name:      u.Name,
		Age:       u.Age,
		Email:     u.Email,
		Password:  u.Password,
		Tokens:    make([]tokenDocument, 0, len(u.Tokens)),
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	for _, t := range u.Tokens {
		doc.Tokens = append(doc.Tokens, tokenDocument{Token: t.Token, CreatedAt: t.CreatedAt})
	}
	return doc
}

func fromUserDocument(doc *userDocument) *domain.User {
	u := &domain.User{
		ID:        doc.ID,
		Name:      doc.Name,
		Age:       doc.Age,
		Email:     doc.Email,
		Password:  doc.Password,
		Avatar:    doc.Avatar,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	u.MarkPasswordHashed(doc.Password)
	for _, t := range doc.Tokens {
		u.Tokens = append(u.Tokens, domain.AuthToken{Token: t.Token, CreatedAt: t.CreatedAt})
	}
	return u
}
