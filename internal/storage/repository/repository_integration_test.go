package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/edtechhq/user-lifecycle/internal/migrations"
	"github.com/edtechhq/user-lifecycle/internal/models"
)

func startTestDB(t *testing.T, migrationsSubdir string) *sql.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	projectRoot, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db, filepath.Join(projectRoot, "migrations", migrationsSubdir)))

	return db
}

func insertTestUser(t *testing.T, db *sql.DB, u *models.User) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO users (uid, email, username, role,
			subscription_plan, subscription_status, subscription_end_date,
			subscription_last_purchase_date, subscription_payment_method,
			last_login_at, last_active_at,
			first_reminder_sent, final_reminder_sent, last_reminder_sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		u.UID, u.Email, u.Username, u.Role,
		u.Subscription.Plan, u.Subscription.Status, u.Subscription.EndDate,
		u.Subscription.LastPurchaseDate, u.Subscription.PaymentMethod,
		u.LastLoginAt, u.LastActiveAt,
		u.FirstReminderSent, u.FinalReminderSent, u.LastReminderSentAt)
	require.NoError(t, err)
}

func makeTestUser(lastLogin time.Time) *models.User {
	uid := uuid.NewString()
	return &models.User{
		UID:      uid,
		Email:    "user-" + uid[:8] + "@example.com",
		Username: "user-" + uid[:8],
		Role:     "user",
		Subscription: models.Subscription{
			Plan:          "basic",
			Status:        models.SubscriptionStatusExpired,
			PaymentMethod: "card",
		},
		LastLoginAt:  lastLogin,
		LastActiveAt: lastLogin,
	}
}

func TestStorage_GetUser(t *testing.T) {
	db := startTestDB(t, "users")
	storage := &Storage{DB: db}
	ctx := context.Background()

	u := makeTestUser(time.Now().UTC().AddDate(0, 0, -80).Truncate(time.Microsecond))
	insertTestUser(t, db, u)

	got, err := storage.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, u.UID, got.UID)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, u.Subscription.Status, got.Subscription.Status)
	assert.False(t, got.FirstReminderSent)
	assert.Nil(t, got.LastReminderSentAt)

	_, err = storage.GetUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_ListInactivityCandidates(t *testing.T) {
	db := startTestDB(t, "users")
	storage := &Storage{DB: db}
	ctx := context.Background()
	now := time.Now().UTC()

	stale := makeTestUser(now.AddDate(0, 0, -80))
	fresh := makeTestUser(now.AddDate(0, 0, -10))
	flagged := makeTestUser(now.AddDate(0, 0, -10))
	flagged.FirstReminderSent = true
	insertTestUser(t, db, stale)
	insertTestUser(t, db, fresh)
	insertTestUser(t, db, flagged)

	got, err := storage.ListInactivityCandidates(ctx, now.AddDate(0, 0, -75))
	require.NoError(t, err)

	uids := make(map[string]bool)
	for _, u := range got {
		uids[u.UID] = true
	}
	assert.True(t, uids[stale.UID], "пользователь со старым входом должен попасть в выборку")
	assert.True(t, uids[flagged.UID], "пользователь с флагом напоминания должен попасть в выборку")
	assert.False(t, uids[fresh.UID], "активный пользователь не должен попасть в выборку")
}

func TestStorage_MarkFirstReminderSent(t *testing.T) {
	db := startTestDB(t, "users")
	storage := &Storage{DB: db}
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := makeTestUser(now.AddDate(0, 0, -80))
	insertTestUser(t, db, u)

	err := storage.MarkFirstReminderSent(ctx, u.UID, now, u.LastLoginAt)
	require.NoError(t, err)

	got, err := storage.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.True(t, got.FirstReminderSent)
	require.NotNil(t, got.LastReminderSentAt)

	// Повторная установка того же флага отклоняется как конфликт.
	err = storage.MarkFirstReminderSent(ctx, u.UID, now, u.LastLoginAt)
	assert.ErrorIs(t, err, ErrVersionConflict)

	err = storage.MarkFirstReminderSent(ctx, uuid.NewString(), now, u.LastLoginAt)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_MarkFirstReminderSent_LoginChanged(t *testing.T) {
	db := startTestDB(t, "users")
	storage := &Storage{DB: db}
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := makeTestUser(now.AddDate(0, 0, -80))
	insertTestUser(t, db, u)

	// Пользователь вошёл в систему после классификации.
	_, err := db.Exec(`UPDATE users SET last_login_at = $2 WHERE uid = $1`, u.UID, now)
	require.NoError(t, err)

	err = storage.MarkFirstReminderSent(ctx, u.UID, now, u.LastLoginAt)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := storage.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.False(t, got.FirstReminderSent, "флаг не должен быть выставлен при устаревшем наблюдении")
}

func TestStorage_MarkFinalReminderSent_RequiresFirst(t *testing.T) {
	db := startTestDB(t, "users")
	storage := &Storage{DB: db}
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := makeTestUser(now.AddDate(0, 0, -100))
	insertTestUser(t, db, u)

	err := storage.MarkFinalReminderSent(ctx, u.UID, now, u.LastLoginAt)
	assert.ErrorIs(t, err, ErrVersionConflict)

	require.NoError(t, storage.MarkFirstReminderSent(ctx, u.UID, now, u.LastLoginAt))
	require.NoError(t, storage.MarkFinalReminderSent(ctx, u.UID, now, u.LastLoginAt))

	got, err := storage.GetUser(ctx, u.UID)
	require.NoError(t, err)
	assert.True(t, got.FinalReminderSent)
}

func TestStorage_DeleteUser(t *testing.T) {
	db := startTestDB(t, "users")
	storage := &Storage{DB: db}
	ctx := context.Background()

	u := makeTestUser(time.Now().UTC().AddDate(0, 0, -100))
	insertTestUser(t, db, u)

	require.NoError(t, storage.DeleteUser(ctx, u.UID))

	_, err := storage.GetUser(ctx, u.UID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = storage.DeleteUser(ctx, u.UID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestArchiveStorage_InsertAndGet(t *testing.T) {
	db := startTestDB(t, "archive")
	storage := &ArchiveStorage{DB: db}
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := makeTestUser(now.AddDate(0, 0, -100))
	userData, err := json.Marshal(u)
	require.NoError(t, err)

	rec := &models.ArchivedUser{
		OriginalID:   u.UID,
		Email:        u.Email,
		Username:     u.Username,
		Subscription: u.Subscription,
		LastActiveAt: u.LastActiveAt.Truncate(time.Microsecond),
		UserData:     userData,
		ArchivedAt:   now,
	}

	inserted, err := storage.InsertArchivedUser(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Повторная вставка того же снимка не создает дубликата.
	inserted, err = storage.InsertArchivedUser(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := storage.GetArchivedUser(ctx, u.UID)
	require.NoError(t, err)
	assert.Equal(t, rec.OriginalID, got.OriginalID)
	assert.Equal(t, rec.Email, got.Email)
	assert.JSONEq(t, string(userData), string(got.UserData))

	_, err = storage.GetArchivedUser(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrArchivedUserNotFound)
}

func TestArchiveStorage_ListArchivedUsers(t *testing.T) {
	db := startTestDB(t, "archive")
	storage := &ArchiveStorage{DB: db}
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := range 3 {
		u := makeTestUser(now.AddDate(0, 0, -100))
		userData, err := json.Marshal(u)
		require.NoError(t, err)
		_, err = storage.InsertArchivedUser(ctx, &models.ArchivedUser{
			OriginalID:   u.UID,
			Email:        u.Email,
			Username:     u.Username,
			Subscription: u.Subscription,
			LastActiveAt: u.LastActiveAt,
			UserData:     userData,
			ArchivedAt:   now.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	got, err := storage.ListArchivedUsers(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].ArchivedAt.After(got[1].ArchivedAt), "список должен идти от свежих записей")

	rest, err := storage.ListArchivedUsers(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}
