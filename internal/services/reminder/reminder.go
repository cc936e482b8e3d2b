// Package reminder содержит планировщик отправки напоминаний о неактивности.
//
// Флаг стадии выставляется только после подтверждённой отправки, поэтому
// временная ошибка уведомителя не теряет напоминание: без флага пользователь
// снова попадёт в выборку на следующем проходе. Повтор письма между проходами
// допустим — содержимое стадии статично.
package reminder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/edtechhq/user-lifecycle/internal/lib/sl"
	"github.com/edtechhq/user-lifecycle/internal/models"
	"github.com/edtechhq/user-lifecycle/internal/services/classifier"
	"github.com/edtechhq/user-lifecycle/internal/storage/repository"
)

// UserRepository определяет методы основного хранилища, нужные планировщику.
type UserRepository interface {
	// GetUser возвращает пользователя по UID.
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	// MarkFirstReminderSent условно выставляет флаг первого напоминания.
	MarkFirstReminderSent(ctx context.Context, userUID string, sentAt, observedLastLogin time.Time) error
	// MarkFinalReminderSent условно выставляет флаг финального напоминания.
	MarkFinalReminderSent(ctx context.Context, userUID string, sentAt, observedLastLogin time.Time) error
}

// Notifier отправляет напоминания пользователю. Ошибки считаются временными
// и приводят к повтору на следующем проходе.
type Notifier interface {
	SendFirstReminder(ctx context.Context, u *models.User) error
	SendFinalReminder(ctx context.Context, u *models.User) error
}

// Scheduler выполняет проход отправки напоминаний по классифицированным спискам.
type Scheduler struct {
	repo       UserRepository
	notifier   Notifier
	classifier *classifier.Classifier
	workers    int
	log        *slog.Logger
}

// New создает новый экземпляр Scheduler. workers ограничивает число
// одновременных отправок; значение меньше единицы означает один воркер.
func New(repo UserRepository, notifier Notifier, cl *classifier.Classifier, workers int, log *slog.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	return &Scheduler{
		repo:       repo,
		notifier:   notifier,
		classifier: cl,
		workers:    workers,
		log:        log,
	}
}

// RunPass отправляет первые и финальные напоминания по переданным спискам.
// Каждый пользователь встречается в списках не более одного раза, поэтому
// воркеры никогда не работают над одной записью одновременно. Отмена контекста
// останавливает раздачу новых пользователей; начатые отправки довершаются.
func (s *Scheduler) RunPass(ctx context.Context, firstDue, finalDue []*models.User, now time.Time) *models.ReminderReport {
	report := &models.ReminderReport{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, s.workers)

	dispatch := func(u *models.User, stage string) bool {
		select {
		case <-ctx.Done():
			return false
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.processUser(ctx, u, stage, now, report, &mu)
		}()
		return true
	}

	for _, u := range firstDue {
		if !dispatch(u, models.ReminderStageFirst) {
			break
		}
	}
	for _, u := range finalDue {
		if !dispatch(u, models.ReminderStageFinal) {
			break
		}
	}
	wg.Wait()
	return report
}

func (s *Scheduler) processUser(ctx context.Context, u *models.User, stage string, now time.Time, report *models.ReminderReport, mu *sync.Mutex) {
	err := s.sendAndMark(ctx, u, stage, now)
	mu.Lock()
	defer mu.Unlock()
	switch {
	case err == nil:
		if stage == models.ReminderStageFirst {
			report.FirstSent = append(report.FirstSent, u.UID)
		} else {
			report.FinalSent = append(report.FinalSent, u.UID)
		}
	case errors.Is(err, repository.ErrUserNotFound):
		// Пользователь исчез между классификацией и отправкой - не ошибка.
		s.log.Info("user vanished before reminder", slog.String("user_uid", u.UID))
	default:
		s.log.Error("failed to process reminder",
			slog.String("user_uid", u.UID), slog.String("stage", stage), sl.Err(err))
		report.Failures = append(report.Failures, models.UserFailure{UserUID: u.UID, Err: err.Error()})
	}
}

// sendAndMark отправляет напоминание и после подтверждения выставляет флаг.
// При конфликте версий запись перечитывается и классифицируется заново один раз;
// если стадия всё ещё актуальна, обновление повторяется со свежим last_login_at.
func (s *Scheduler) sendAndMark(ctx context.Context, u *models.User, stage string, now time.Time) error {
	var sendErr error
	if stage == models.ReminderStageFirst {
		sendErr = s.notifier.SendFirstReminder(ctx, u)
	} else {
		sendErr = s.notifier.SendFinalReminder(ctx, u)
	}
	if sendErr != nil {
		return sendErr
	}

	err := s.mark(ctx, u.UID, stage, now, u.LastLoginAt)
	if !errors.Is(err, repository.ErrVersionConflict) {
		return err
	}

	fresh, err := s.repo.GetUser(ctx, u.UID)
	if err != nil {
		return err
	}
	state := s.classifier.Classify(fresh, now)
	wantState := classifier.StateFirstReminderDue
	if stage == models.ReminderStageFinal {
		wantState = classifier.StateFinalReminderDue
	}
	if state != wantState {
		// Пользователь успел проявить активность - напоминание больше не нужно.
		s.log.Info("reminder no longer due after re-read",
			slog.String("user_uid", u.UID), slog.String("state", state.String()))
		return nil
	}
	return s.mark(ctx, fresh.UID, stage, now, fresh.LastLoginAt)
}

func (s *Scheduler) mark(ctx context.Context, userUID, stage string, sentAt, observedLastLogin time.Time) error {
	if stage == models.ReminderStageFirst {
		return s.repo.MarkFirstReminderSent(ctx, userUID, sentAt, observedLastLogin)
	}
	return s.repo.MarkFinalReminderSent(ctx, userUID, sentAt, observedLastLogin)
}
