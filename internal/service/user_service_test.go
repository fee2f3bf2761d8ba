package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-manager/internal/auth"
	"task-manager/internal/domain"
	"task-manager/internal/repository"
	"task-manager/internal/repository/sqlite"
	"task-manager/internal/storage"
	"task-manager/internal/validation"
)

var (
	testSecret = []byte("test-secret")
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

type fixture struct {
	db    *sql.DB
	users repository.UserRepository
	tasks repository.TaskRepository
	svc   UserService
	store *fakeStorage
}

type fakeStorage struct {
	puts      map[string][]byte
	removed   []string
	putErr    error
	removeErr error
}

func (f *fakeStorage) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[key] = body
	return nil
}

func (f *fakeStorage) DeletePrefix(ctx context.Context, bucket, prefix string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, prefix)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Migrate(context.Background(), db, nil))

	f := &fixture{
		db:    db,
		users: sqlite.NewUserRepository(db),
		tasks: sqlite.NewTaskRepository(db),
		store: &fakeStorage{},
	}
	f.svc = NewUserService(f.users, f.tasks, UserConfig{
		JWTSecret: testSecret,
		Mirror:    storage.NewAvatarMirror(f.store, "bucket", "avatars"),
		Logger:    quietLogger(),
	})
	return f
}

func (f *fixture) createUser(t *testing.T, email string) *domain.User {
	t.Helper()
	u, err := f.svc.Create(context.Background(), NewUser{Name: "Jane", Email: email, Password: "red12345!"})
	require.NoError(t, err)
	return u
}

func TestCreate_RejectsForbiddenPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, pw := range []string{"password123", "MyPassWord", "xxPASSWORD"} {
		_, err := f.svc.Create(ctx, NewUser{Email: "jane@example.com", Password: pw})
		require.Error(t, err)
		assert.True(t, errors.Is(err, validation.ErrValidation), pw)
	}

	_, err := f.users.GetByEmail(ctx, "jane@example.com")
	assert.True(t, errors.Is(err, repository.ErrNotFound), "nothing must be written")
}

func TestCreate_RejectsShortPassword(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(context.Background(), NewUser{Email: "jane@example.com", Password: "abc123"})
	assert.True(t, errors.Is(err, validation.ErrValidation))
}

func TestCreate_Email(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, email := range []string{"", "plainaddress", "jane@", "@example.com"} {
		_, err := f.svc.Create(ctx, NewUser{Email: email, Password: "red12345!"})
		assert.True(t, errors.Is(err, validation.ErrValidation), email)
	}

	for _, email := range []string{"a@example.com", "b.c+tag@example.org"} {
		_, err := f.svc.Create(ctx, NewUser{Email: email, Password: "red12345!"})
		assert.NoError(t, err, email)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	f := setup(t)
	f.createUser(t, "jane@example.com")

	_, err := f.svc.Create(context.Background(), NewUser{Email: "jane@example.com", Password: "other1234"})
	assert.True(t, errors.Is(err, repository.ErrDuplicateEmail))
}

func TestCreate_StoresHashOnly(t *testing.T) {
	f := setup(t)
	u := f.createUser(t, "jane@example.com")

	assert.NotEqual(t, "red12345!", u.Password)
	assert.False(t, u.PasswordChanged())

	stored, err := f.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "red12345!", stored.Password)
	assert.True(t, auth.ComparePassword(stored.Password, "red12345!"))
}

func TestSave_KeepsHashWhenPasswordUntouched(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.createUser(t, "jane@example.com")
	hash := u.Password

	loaded, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	loaded.Name = "Janet"
	require.NoError(t, f.svc.Save(ctx, loaded))

	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Janet", stored.Name)
	assert.Equal(t, hash, stored.Password)
	assert.True(t, auth.ComparePassword(stored.Password, "red12345!"))
}

func TestSave_HashesDirectlyAssignedPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.createUser(t, "jane@example.com")

	loaded, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	loaded.Password = "hunter2222"
	require.NoError(t, f.svc.Save(ctx, loaded))

	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2222", stored.Password)
	assert.True(t, strings.HasPrefix(stored.Password, "$2a$08$"), stored.Password)
	assert.True(t, auth.ComparePassword(stored.Password, "hunter2222"))

	stored.Password = "pass"
	err = f.svc.Save(ctx, stored)
	assert.True(t, errors.Is(err, validation.ErrValidation))
}

func TestUpdate_RehashesChangedPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.createUser(t, "jane@example.com")
	oldHash := u.Password

	newPassword := "blue98765?"
	age := 27
	require.NoError(t, f.svc.Update(ctx, u, UserUpdate{Password: &newPassword, Age: &age}))
	assert.NotEqual(t, oldHash, u.Password)

	_, err := f.svc.FindByCredentials(ctx, "jane@example.com", "red12345!")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	found, err := f.svc.FindByCredentials(ctx, "jane@example.com", newPassword)
	require.NoError(t, err)
	require.NotNil(t, found.Age)
	assert.Equal(t, 27, *found.Age)
}

func TestUpdate_ValidatesBeforeWriting(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.createUser(t, "jane@example.com")

	bad := "password!"
	err := f.svc.Update(ctx, u, UserUpdate{Password: &bad})
	assert.True(t, errors.Is(err, validation.ErrValidation))

	_, err = f.svc.FindByCredentials(ctx, "jane@example.com", "red12345!")
	assert.NoError(t, err)
}

func TestGenerateAuthToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.createUser(t, "jane@example.com")
	hash := u.Password

	first, err := f.svc.GenerateAuthToken(ctx, u)
	require.NoError(t, err)
	assert.Len(t, u.Tokens, 1)

	second, err := f.svc.GenerateAuthToken(ctx, u)
	require.NoError(t, err)
	assert.Len(t, u.Tokens, 2)
	assert.NotEqual(t, first, second)

	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, stored.Tokens, 2)
	assert.Equal(t, first, stored.Tokens[0].Token)
	assert.Equal(t, second, stored.Tokens[1].Token)
	assert.Equal(t, hash, stored.Password)

	userID, err := auth.ParseToken(first, testSecret)
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)
}

type failingUsers struct {
	repository.UserRepository
	err error
}

func (f *failingUsers) Update(ctx context.Context, user *domain.User) error {
	return f.err
}

func TestGenerateAuthToken_PropagatesStoreError(t *testing.T) {
	f := setup(t)
	u := f.createUser(t, "jane@example.com")

	storeErr := errors.New("disk full")
	svc := NewUserService(&failingUsers{UserRepository: f.users, err: storeErr}, f.tasks, UserConfig{JWTSecret: testSecret, Logger: quietLogger()})

	_, err := svc.GenerateAuthToken(context.Background(), u)
	assert.Equal(t, storeErr, err)
	assert.Empty(t, u.Tokens)
}

func TestFindByCredentials(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.createUser(t, "jane@example.com")

	found, err := f.svc.FindByCredentials(ctx, "jane@example.com", "red12345!")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, wrongPassword := f.svc.FindByCredentials(ctx, "jane@example.com", "red12345?")
	_, unknownEmail := f.svc.FindByCredentials(ctx, "nobody@example.com", "red12345!")
	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, wrongPassword, unknownEmail)
	assert.True(t, errors.Is(wrongPassword, ErrInvalidCredentials))
}

func TestAuthenticateAndLogout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.createUser(t, "jane@example.com")

	a, err := f.svc.GenerateAuthToken(ctx, u)
	require.NoError(t, err)
	b, err := f.svc.GenerateAuthToken(ctx, u)
	require.NoError(t, err)

	got, err := f.svc.Authenticate(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, f.svc.Logout(ctx, got, a))
	_, err = f.svc.Authenticate(ctx, a)
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))

	got, err = f.svc.Authenticate(ctx, b)
	require.NoError(t, err)
	require.NoError(t, f.svc.LogoutAll(ctx, got))
	_, err = f.svc.Authenticate(ctx, b)
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))
}

func TestSetAvatar(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.createUser(t, "jane@example.com")

	require.NoError(t, f.svc.SetAvatar(ctx, u, pngHeader))
	stored, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, stored.Avatar)
	assert.Equal(t, pngHeader, f.store.puts["avatars/"+u.ID+"/avatar"])

	require.NoError(t, f.svc.SetAvatar(ctx, u, jpegHeader))

	for _, data := range [][]byte{nil, []byte("just some text"), make([]byte, MaxAvatarBytes+1)} {
		err := f.svc.SetAvatar(ctx, u, data)
		assert.True(t, errors.Is(err, ErrInvalidAvatar))
	}

	require.NoError(t, f.svc.DeleteAvatar(ctx, u))
	stored, err = f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Avatar)
	assert.Equal(t, []string{"avatars/" + u.ID + "/"}, f.store.removed)
}

func TestSetAvatar_MirrorFailureDoesNotFail(t *testing.T) {
	f := setup(t)
	f.store.putErr = errors.New("s3 unavailable")
	u := f.createUser(t, "jane@example.com")

	require.NoError(t, f.svc.SetAvatar(context.Background(), u, pngHeader))
}

func TestRemove_CascadesToOwnedTasks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	u := f.createUser(t, "jane@example.com")
	other := f.createUser(t, "john@example.com")

	for i := 0; i < 5; i++ {
		require.NoError(t, f.tasks.Create(ctx, &domain.Task{Description: strings.Repeat("x", i+1), Owner: u.ID}))
	}
	require.NoError(t, f.tasks.Create(ctx, &domain.Task{Description: "keep", Owner: other.ID}))

	owned, err := f.svc.TasksOwnedBy(ctx, u.ID, domain.TaskQuery{})
	require.NoError(t, err)
	assert.Len(t, owned, 5)

	require.NoError(t, f.svc.Remove(ctx, u))

	owned, err = f.svc.TasksOwnedBy(ctx, u.ID, domain.TaskQuery{})
	require.NoError(t, err)
	assert.Empty(t, owned)
	_, err = f.users.GetByID(ctx, u.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	kept, err := f.svc.TasksOwnedBy(ctx, other.ID, domain.TaskQuery{})
	require.NoError(t, err)
	assert.Len(t, kept, 1)
	assert.Contains(t, f.store.removed, "avatars/"+u.ID+"/")
}

type failingTasks struct {
	repository.TaskRepository
	err error
}

func (f *failingTasks) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	return 0, f.err
}

func TestRemove_StopsWhenTaskDeletionFails(t *testing.T) {
	f := setup(t)
	u := f.createUser(t, "jane@example.com")

	storeErr := errors.New("locked")
	svc := NewUserService(f.users, &failingTasks{TaskRepository: f.tasks, err: storeErr}, UserConfig{JWTSecret: testSecret, Logger: quietLogger()})

	assert.Equal(t, storeErr, svc.Remove(context.Background(), u))
	_, err := f.users.GetByID(context.Background(), u.ID)
	assert.NoError(t, err)
}

func TestRemove_MirrorFailureIsBestEffort(t *testing.T) {
	f := setup(t)
	f.store.removeErr = errors.New("s3 unavailable")
	u := f.createUser(t, "jane@example.com")

	require.NoError(t, f.svc.Remove(context.Background(), u))
	_, err := f.users.GetByID(context.Background(), u.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}
