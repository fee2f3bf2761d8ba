package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"task-manager/internal/auth"
	"task-manager/internal/domain"
	"task-manager/internal/repository"
	"task-manager/internal/storage"
	"task-manager/internal/validation"
)

// MaxAvatarBytes caps the size of an uploaded avatar.
const MaxAvatarBytes = 1_000_000

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("unable to login")
	// ErrInvalidAvatar indicates an upload that is empty, too large or not a JPEG/PNG image.
	ErrInvalidAvatar = errors.New("invalid avatar")
)

// NewUser carries the fields accepted on signup.
type NewUser struct {
	Name     string
	Age      *int
	Email    string
	Password string
}

// UserUpdate lists the fields a user may change; nil means untouched.
type UserUpdate struct {
	Name     *string
	Age      *int
	Email    *string
	Password *string
}

// UserService describes user lifecycle operations.
type UserService interface {
	Create(ctx context.Context, in NewUser) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User, in UserUpdate) error
	GenerateAuthToken(ctx context.Context, user *domain.User) (string, error)
	FindByCredentials(ctx context.Context, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)
	Logout(ctx context.Context, user *domain.User, token string) error
	LogoutAll(ctx context.Context, user *domain.User) error
	SetAvatar(ctx context.Context, user *domain.User, data []byte) error
	DeleteAvatar(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	TasksOwnedBy(ctx context.Context, userID string, query domain.TaskQuery) ([]domain.Task, error)
	Remove(ctx context.Context, user *domain.User) error
}

// UserConfig holds the collaborators of the user service that are not repositories.
type UserConfig struct {
	JWTSecret []byte
	// TokenTTL of zero issues tokens that never expire.
	TokenTTL time.Duration
	// Mirror is optional; avatars stay on the record either way.
	Mirror *storage.AvatarMirror
	Logger *logrus.Logger
}

type userService struct {
	users  repository.UserRepository
	tasks  repository.TaskRepository
	cfg    UserConfig
	logger *logrus.Logger
}

func NewUserService(users repository.UserRepository, tasks repository.TaskRepository, cfg UserConfig) UserService {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &userService{
		users:  users,
		tasks:  tasks,
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

func (s *userService) Create(ctx context.Context, in NewUser) (*domain.User, error) {
	user := &domain.User{
		Name:  strings.TrimSpace(in.Name),
		Age:   in.Age,
		Email: in.Email,
	}
	user.SetPassword(in.Password)

	if err := s.write(ctx, user, s.users.Create); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Save(ctx context.Context, user *domain.User) error {
	return s.write(ctx, user, s.users.Update)
}

// write validates the record, hashes a changed password and hands it to the store.
func (s *userService) write(ctx context.Context, user *domain.User, persist func(context.Context, *domain.User) error) error {
	if user.PasswordChanged() {
		user.SetPassword(user.Password)
	}
	if err := validation.ValidateUser(user); err != nil {
		return err
	}
	if user.PasswordChanged() {
		hash, err := auth.HashPassword(user.Password)
		if err != nil {
			return err
		}
		user.MarkPasswordHashed(hash)
	}
	return persist(ctx, user)
}

func (s *userService) Update(ctx context.Context, user *domain.User, in UserUpdate) error {
	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Age != nil {
		age := *in.Age
		user.Age = &age
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Password != nil {
		user.SetPassword(*in.Password)
	}
	return s.Save(ctx, user)
}

func (s *userService) GenerateAuthToken(ctx context.Context, user *domain.User) (string, error) {
	token, err := auth.GenerateToken(user.ID, s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		return "", err
	}

	user.Tokens = append(user.Tokens, domain.AuthToken{Token: token, CreatedAt: time.Now().UTC()})
	if err := s.Save(ctx, user); err != nil {
		user.Tokens = user.Tokens[:len(user.Tokens)-1]
		return "", err
	}
	return token, nil
}

func (s *userService) FindByCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.ComparePassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	userID, err := auth.ParseToken(token, s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByIDAndToken(ctx, userID, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) Logout(ctx context.Context, user *domain.User, token string) error {
	user.RemoveToken(token)
	return s.Save(ctx, user)
}

func (s *userService) LogoutAll(ctx context.Context, user *domain.User) error {
	user.Tokens = nil
	return s.Save(ctx, user)
}

func (s *userService) SetAvatar(ctx context.Context, user *domain.User, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: file is empty", ErrInvalidAvatar)
	}
	if len(data) > MaxAvatarBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidAvatar, MaxAvatarBytes)
	}
	mt := mimetype.Detect(data)
	if !mt.Is("image/jpeg") && !mt.Is("image/png") {
		return fmt.Errorf("%w: please upload a jpg, jpeg or png image", ErrInvalidAvatar)
	}

	user.Avatar = data
	if err := s.Save(ctx, user); err != nil {
		return err
	}

	if s.cfg.Mirror != nil {
		location, err := s.cfg.Mirror.Put(ctx, user.ID, data, mt.String())
		if err != nil {
			s.logger.WithField("user_id", user.ID).Warnf("avatar mirror: %v", err)
		} else {
			s.logger.WithField("user_id", user.ID).Debugf("avatar mirrored to %s", location)
		}
	}
	return nil
}

func (s *userService) DeleteAvatar(ctx context.Context, user *domain.User) error {
	user.Avatar = nil
	if err := s.Save(ctx, user); err != nil {
		return err
	}
	s.removeMirror(ctx, user.ID)
	return nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *userService) TasksOwnedBy(ctx context.Context, userID string, query domain.TaskQuery) ([]domain.Task, error) {
	return s.tasks.ListByOwner(ctx, userID, query)
}

// Remove deletes the user's tasks and then the user. The two steps are not atomic.
func (s *userService) Remove(ctx context.Context, user *domain.User) error {
	logger := s.logger.WithField("user_id", user.ID)

	deleted, err := s.tasks.DeleteByOwner(ctx, user.ID)
	if err != nil {
		return err
	}
	logger.Debugf("deleted %d owned tasks", deleted)

	s.removeMirror(ctx, user.ID)

	if err := s.users.Delete(ctx, user.ID); err != nil {
		logger.Errorf("owned tasks deleted but user removal failed: %v", err)
		return err
	}
	return nil
}

func (s *userService) removeMirror(ctx context.Context, userID string) {
	if s.cfg.Mirror == nil {
		return
	}
	if err := s.cfg.Mirror.Remove(ctx, userID); err != nil {
		s.logger.WithField("user_id", userID).Warnf("avatar mirror cleanup: %v", err)
	}
}
