package archival

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edtechhq/user-lifecycle/internal/models"
	"github.com/edtechhq/user-lifecycle/internal/storage/repository"
)

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) DeleteUser(ctx context.Context, userUID string) error {
	args := m.Called(ctx, userUID)
	return args.Error(0)
}

type MockArchiveStore struct {
	mock.Mock
}

func (m *MockArchiveStore) InsertArchivedUser(ctx context.Context, rec *models.ArchivedUser) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *MockArchiveStore) GetArchivedUser(ctx context.Context, originalID string) (*models.ArchivedUser, error) {
	args := m.Called(ctx, originalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ArchivedUser), args.Error(1)
}

func (m *MockArchiveStore) ListArchivedUsers(ctx context.Context, limit, offset int) ([]*models.ArchivedUser, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ArchivedUser), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(key string, result any) (bool, error) {
	args := m.Called(key, result)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) Set(key string, value any, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Invalidate(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newEngine(users *MockUserStore, archive *MockArchiveStore, cache *MockCache) *Engine {
	e := New(users, archive, cache, 2, newNoopLogger())
	e.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func testUser(uid string) *models.User {
	lastLogin := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)
	return &models.User{
		UID:          uid,
		Email:        uid + "@example.com",
		Username:     uid,
		Role:         "user",
		LastLoginAt:  lastLogin,
		LastActiveAt: lastLogin,
		Subscription: models.Subscription{
			Plan:   "basic",
			Status: models.SubscriptionStatusExpired,
		},
	}
}

func allowCacheWrites(cache *MockCache) {
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	cache.On("Invalidate", mock.Anything).Return(nil).Maybe()
}

func TestArchive_Success(t *testing.T) {
	u := testUser("user-1")
	users := new(MockUserStore)
	archive := new(MockArchiveStore)
	cache := new(MockCache)
	allowCacheWrites(cache)

	users.On("GetUser", mock.Anything, "user-1").Return(u, nil)
	archive.On("InsertArchivedUser", mock.Anything, mock.Anything).Return(true, nil)
	users.On("DeleteUser", mock.Anything, "user-1").Return(nil)

	e := newEngine(users, archive, cache)
	rec, err := e.Archive(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "user-1", rec.OriginalID)
	assert.Equal(t, u.Email, rec.Email)
	assert.Equal(t, u.Subscription, rec.Subscription)
	assert.Equal(t, e.now(), rec.ArchivedAt)

	var restored models.User
	require.NoError(t, json.Unmarshal(rec.UserData, &restored))
	assert.Equal(t, *u, restored)

	users.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestArchive_AlreadyArchivedReturnsExisting(t *testing.T) {
	existing := &models.ArchivedUser{OriginalID: "user-1", Email: "user-1@example.com"}
	users := new(MockUserStore)
	archive := new(MockArchiveStore)
	cache := new(MockCache)

	users.On("GetUser", mock.Anything, "user-1").Return(nil, repository.ErrUserNotFound)
	archive.On("GetArchivedUser", mock.Anything, "user-1").Return(existing, nil)

	e := newEngine(users, archive, cache)
	rec, err := e.Archive(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, existing, rec)
	archive.AssertNotCalled(t, "InsertArchivedUser", mock.Anything, mock.Anything)
	users.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
}

func TestArchive_UnknownUser(t *testing.T) {
	users := new(MockUserStore)
	archive := new(MockArchiveStore)
	cache := new(MockCache)

	users.On("GetUser", mock.Anything, "ghost").Return(nil, repository.ErrUserNotFound)
	archive.On("GetArchivedUser", mock.Anything, "ghost").Return(nil, repository.ErrArchivedUserNotFound)

	e := newEngine(users, archive, cache)
	_, err := e.Archive(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestArchive_ResumesAfterPartialFailure(t *testing.T) {
	u := testUser("user-1")
	existing := &models.ArchivedUser{OriginalID: "user-1", Email: u.Email}
	users := new(MockUserStore)
	archive := new(MockArchiveStore)
	cache := new(MockCache)
	allowCacheWrites(cache)

	users.On("GetUser", mock.Anything, "user-1").Return(u, nil)
	archive.On("InsertArchivedUser", mock.Anything, mock.Anything).Return(false, nil)
	archive.On("GetArchivedUser", mock.Anything, "user-1").Return(existing, nil)
	users.On("DeleteUser", mock.Anything, "user-1").Return(nil)

	e := newEngine(users, archive, cache)
	rec, err := e.Archive(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, existing, rec)
	users.AssertExpectations(t)
}

func TestArchive_DeleteFailureReportsPending(t *testing.T) {
	u := testUser("user-1")
	users := new(MockUserStore)
	archive := new(MockArchiveStore)
	cache := new(MockCache)

	users.On("GetUser", mock.Anything, "user-1").Return(u, nil)
	archive.On("InsertArchivedUser", mock.Anything, mock.Anything).Return(true, nil)
	users.On("DeleteUser", mock.Anything, "user-1").Return(errors.New("connection reset"))

	e := newEngine(users, archive, cache)
	_, err := e.Archive(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrDeletePending)
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name         string
		archived     bool
		deleteErr    error
		wantErr      bool
		expectDelete bool
	}{
		{
			name:         "довершает удаление живой записи",
			archived:     true,
			expectDelete: true,
		},
		{
			name:         "живой записи уже нет",
			archived:     true,
			deleteErr:    repository.ErrUserNotFound,
			expectDelete: true,
		},
		{
			name:     "снимка нет, делать нечего",
			archived: false,
		},
		{
			name:         "ошибка удаления возвращается",
			archived:     true,
			deleteErr:    errors.New("connection reset"),
			wantErr:      true,
			expectDelete: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(MockUserStore)
			archive := new(MockArchiveStore)
			cache := new(MockCache)

			if tt.archived {
				archive.On("GetArchivedUser", mock.Anything, "user-1").
					Return(&models.ArchivedUser{OriginalID: "user-1"}, nil)
			} else {
				archive.On("GetArchivedUser", mock.Anything, "user-1").
					Return(nil, repository.ErrArchivedUserNotFound)
			}
			if tt.expectDelete {
				users.On("DeleteUser", mock.Anything, "user-1").Return(tt.deleteErr)
			}

			e := newEngine(users, archive, cache)
			err := e.Reconcile(context.Background(), "user-1")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			if !tt.expectDelete {
				users.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestArchiveBatch_ContinuesOnFailure(t *testing.T) {
	good := testUser("good-1")
	bad := testUser("bad-1")
	users := new(MockUserStore)
	archive := new(MockArchiveStore)
	cache := new(MockCache)
	allowCacheWrites(cache)

	users.On("GetUser", mock.Anything, "good-1").Return(good, nil)
	archive.On("InsertArchivedUser", mock.Anything, mock.MatchedBy(func(rec *models.ArchivedUser) bool {
		return rec.OriginalID == "good-1"
	})).Return(true, nil)
	users.On("DeleteUser", mock.Anything, "good-1").Return(nil)

	users.On("GetUser", mock.Anything, "bad-1").Return(bad, nil)
	archive.On("InsertArchivedUser", mock.Anything, mock.MatchedBy(func(rec *models.ArchivedUser) bool {
		return rec.OriginalID == "bad-1"
	})).Return(false, errors.New("archive db down"))

	e := newEngine(users, archive, cache)
	report := e.ArchiveBatch(context.Background(), []string{"bad-1", "good-1"})

	assert.Equal(t, []string{"good-1"}, report.Archived)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "bad-1", report.Failed[0].UserUID)
}

func TestArchiveBatch_VanishedUserNotReported(t *testing.T) {
	users := new(MockUserStore)
	archive := new(MockArchiveStore)
	cache := new(MockCache)

	users.On("GetUser", mock.Anything, "ghost").Return(nil, repository.ErrUserNotFound)
	archive.On("GetArchivedUser", mock.Anything, "ghost").Return(nil, repository.ErrArchivedUserNotFound)

	e := newEngine(users, archive, cache)
	report := e.ArchiveBatch(context.Background(), []string{"ghost"})

	assert.Empty(t, report.Archived)
	assert.Empty(t, report.Failed)
}

func TestGetArchived_CacheHit(t *testing.T) {
	users := new(MockUserStore)
	archive := new(MockArchiveStore)
	cache := new(MockCache)

	cache.On("Get", "archived:user-1", mock.Anything).Run(func(args mock.Arguments) {
		rec := args.Get(1).(*models.ArchivedUser)
		rec.OriginalID = "user-1"
		rec.Email = "cached@example.com"
	}).Return(true, nil)

	e := newEngine(users, archive, cache)
	rec, err := e.GetArchived(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cached@example.com", rec.Email)
	archive.AssertNotCalled(t, "GetArchivedUser", mock.Anything, mock.Anything)
}

func TestGetArchived_CacheMissReadsStore(t *testing.T) {
	existing := &models.ArchivedUser{OriginalID: "user-1", Email: "user-1@example.com"}
	users := new(MockUserStore)
	archive := new(MockArchiveStore)
	cache := new(MockCache)

	cache.On("Get", "archived:user-1", mock.Anything).Return(false, nil)
	archive.On("GetArchivedUser", mock.Anything, "user-1").Return(existing, nil)
	cache.On("Set", "archived:user-1", existing, mock.Anything).Return(nil)

	e := newEngine(users, archive, cache)
	rec, err := e.GetArchived(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, existing, rec)
	cache.AssertExpectations(t)
}
