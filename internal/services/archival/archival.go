// Package archival реализует перенос неактивных пользователей в архивную базу.
//
// Порядок шагов фиксирован: свежее чтение, снимок, идемпотентная вставка в
// архив, удаление живой записи. Вставка до удаления гарантирует, что сбой
// посередине оставляет пользователя в обеих базах, а не теряет его: повторный
// запуск доводит перенос до конца.
package archival

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/edtechhq/user-lifecycle/internal/lib/sl"
	"github.com/edtechhq/user-lifecycle/internal/models"
	"github.com/edtechhq/user-lifecycle/internal/storage/repository"
)

// ErrDeletePending возвращается, когда снимок записан в архив, но живая запись
// не удалена. Пользователь временно существует в обеих базах; повторный вызов
// Archive или Reconcile довершает удаление.
var ErrDeletePending = errors.New("archive snapshot written, live record delete pending")

const (
	archivedUserCacheTTL = 10 * time.Minute
	inactiveUsersListKey = "users:inactive"
)

// UserStore определяет методы основного хранилища, нужные архиватору.
type UserStore interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	DeleteUser(ctx context.Context, userUID string) error
}

// ArchiveStore определяет методы архивного хранилища.
type ArchiveStore interface {
	InsertArchivedUser(ctx context.Context, rec *models.ArchivedUser) (bool, error)
	GetArchivedUser(ctx context.Context, originalID string) (*models.ArchivedUser, error)
	ListArchivedUsers(ctx context.Context, limit, offset int) ([]*models.ArchivedUser, error)
}

// CacheInterface определяет методы кеша архивных снимков.
type CacheInterface interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Engine переносит пользователей из основной базы в архивную.
type Engine struct {
	users   UserStore
	archive ArchiveStore
	cache   CacheInterface
	workers int
	log     *slog.Logger
	now     func() time.Time
}

// New создает новый экземпляр Engine. workers ограничивает число одновременных
// переносов в ArchiveBatch.
func New(users UserStore, archive ArchiveStore, cache CacheInterface, workers int, log *slog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		users:   users,
		archive: archive,
		cache:   cache,
		workers: workers,
		log:     log,
		now:     time.Now,
	}
}

// Archive переносит одного пользователя в архив. Операция идемпотентна:
// повторный вызов для уже заархивированного пользователя возвращает
// существующий снимок без ошибки.
func (e *Engine) Archive(ctx context.Context, userUID string) (*models.ArchivedUser, error) {
	const op = "archival.Archive"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	u, err := e.users.GetUser(ctx, userUID)
	if errors.Is(err, repository.ErrUserNotFound) {
		// Живой записи нет. Если снимок уже в архиве, перенос завершён ранее.
		rec, archErr := e.archive.GetArchivedUser(ctx, userUID)
		if archErr == nil {
			return rec, nil
		}
		if errors.Is(archErr, repository.ErrArchivedUserNotFound) {
			return nil, fmt.Errorf("%s: %w", op, repository.ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, archErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec, err := snapshot(u, e.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	inserted, err := e.archive.InsertArchivedUser(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !inserted {
		// Снимок уже записан предыдущей незавершённой попыткой.
		e.log.Info("archive snapshot already exists, resuming delete",
			slog.String("user_uid", userUID))
		if existing, getErr := e.archive.GetArchivedUser(ctx, userUID); getErr == nil {
			rec = existing
		}
	}

	if err := e.users.DeleteUser(ctx, userUID); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDeletePending, err)
	}

	e.cacheArchived(rec)
	return rec, nil
}

// Reconcile довершает перенос для пользователя, у которого снимок уже в архиве,
// а живая запись всё ещё существует. Для обычных записей ничего не делает.
func (e *Engine) Reconcile(ctx context.Context, userUID string) error {
	const op = "archival.Reconcile"

	if _, err := e.archive.GetArchivedUser(ctx, userUID); err != nil {
		if errors.Is(err, repository.ErrArchivedUserNotFound) {
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	err := e.users.DeleteUser(ctx, userUID)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err == nil {
		e.log.Info("completed pending delete for archived user", slog.String("user_uid", userUID))
	}
	return nil
}

// ArchiveBatch переносит список пользователей, продолжая работу при ошибках
// отдельных записей. Каждый пользователь обрабатывается ровно одним воркером.
func (e *Engine) ArchiveBatch(ctx context.Context, userUIDs []string) *models.ArchiveReport {
	report := &models.ArchiveReport{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.workers)

	for _, uid := range userUIDs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return report
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := e.Archive(ctx, uid)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Archived = append(report.Archived, uid)
			case errors.Is(err, repository.ErrUserNotFound):
				// Пользователь исчез между выборкой и переносом - не ошибка.
				e.log.Info("user vanished before archiving", slog.String("user_uid", uid))
			default:
				e.log.Error("failed to archive user", slog.String("user_uid", uid), sl.Err(err))
				report.Failed = append(report.Failed, models.UserFailure{UserUID: uid, Err: err.Error()})
			}
		}(uid)
	}
	wg.Wait()

	if len(report.Archived) > 0 {
		if err := e.cache.Invalidate(inactiveUsersListKey); err != nil {
			e.log.Warn("failed to invalidate inactive users cache", sl.Err(err))
		}
	}
	return report
}

// GetArchived возвращает архивный снимок, используя кеш со сквозным чтением.
func (e *Engine) GetArchived(ctx context.Context, originalID string) (*models.ArchivedUser, error) {
	const op = "archival.GetArchived"

	var cached models.ArchivedUser
	found, err := e.cache.Get(archivedUserKey(originalID), &cached)
	if err != nil {
		e.log.Warn("failed to read archived user from cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	rec, err := e.archive.GetArchivedUser(ctx, originalID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.cacheArchived(rec)
	return rec, nil
}

// ListArchived возвращает страницу архивных снимков, новые записи первыми.
func (e *Engine) ListArchived(ctx context.Context, limit, offset int) ([]*models.ArchivedUser, error) {
	const op = "archival.ListArchived"
	recs, err := e.archive.ListArchivedUsers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return recs, nil
}

func (e *Engine) cacheArchived(rec *models.ArchivedUser) {
	if err := e.cache.Set(archivedUserKey(rec.OriginalID), rec, archivedUserCacheTTL); err != nil {
		e.log.Warn("failed to cache archived user", sl.Err(err))
	}
}

func archivedUserKey(originalID string) string {
	return "archived:" + originalID
}

// snapshot строит архивную запись с полным JSON-снимком пользователя.
// Снимок хранится как непрозрачный документ и не требует миграций при
// изменении схемы живой записи.
func snapshot(u *models.User, archivedAt time.Time) (*models.ArchivedUser, error) {
	userData, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("marshal user snapshot: %w", err)
	}
	return &models.ArchivedUser{
		OriginalID:   u.UID,
		Email:        u.Email,
		Username:     u.Username,
		Subscription: u.Subscription,
		LastActiveAt: u.LastActiveAt,
		UserData:     userData,
		ArchivedAt:   archivedAt,
	}, nil
}
