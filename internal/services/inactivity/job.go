// Package inactivity содержит оркестратор обработки неактивных пользователей:
// классификация кандидатов, проход напоминаний и пакетная архивация.
package inactivity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edtechhq/user-lifecycle/internal/lib/sl"
	"github.com/edtechhq/user-lifecycle/internal/models"
	"github.com/edtechhq/user-lifecycle/internal/services/classifier"
)

const (
	inactiveUsersCacheKey = "users:inactive"
	inactiveUsersCacheTTL = 5 * time.Minute
)

// CandidateRepository определяет выборки кандидатов из основного хранилища.
type CandidateRepository interface {
	// ListInactivityCandidates возвращает надмножество пользователей,
	// которым может потребоваться действие. Сужение выборки не меняет
	// результат классификации, только сокращает чтение.
	ListInactivityCandidates(ctx context.Context, leadCutoff time.Time) ([]*models.User, error)
	// ListInactiveUsers возвращает пользователей, прошедших отсечку неактивности.
	ListInactiveUsers(ctx context.Context, cutoff time.Time) ([]*models.User, error)
}

// ReminderScheduler выполняет проход отправки напоминаний.
type ReminderScheduler interface {
	RunPass(ctx context.Context, firstDue, finalDue []*models.User, now time.Time) *models.ReminderReport
}

// Archiver выполняет пакетный перенос пользователей в архив.
type Archiver interface {
	ArchiveBatch(ctx context.Context, userUIDs []string) *models.ArchiveReport
}

// CacheInterface определяет методы кеша списка неактивных пользователей.
// Кеш инвалидируется архиватором после успешных переносов.
type CacheInterface interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Job связывает классификатор, планировщик напоминаний и архиватор
// в один периодический цикл обработки.
type Job struct {
	repo       CandidateRepository
	scheduler  ReminderScheduler
	archiver   Archiver
	classifier *classifier.Classifier
	cache      CacheInterface
	log        *slog.Logger
}

// New создает новый экземпляр Job.
func New(repo CandidateRepository, scheduler ReminderScheduler, archiver Archiver, cl *classifier.Classifier, cache CacheInterface, log *slog.Logger) *Job {
	return &Job{
		repo:       repo,
		scheduler:  scheduler,
		archiver:   archiver,
		classifier: cl,
		cache:      cache,
		log:        log,
	}
}

// Run выполняет один цикл обработки: загружает кандидатов, классифицирует,
// отправляет напоминания и архивирует. Ошибки отдельных пользователей
// попадают в отчёт и не прерывают цикл; фатальна только невозможность
// загрузить кандидатов.
func (j *Job) Run(ctx context.Context, now time.Time) (*models.JobReport, error) {
	const op = "inactivity.Run"

	leadCutoff := now.Add(-j.classifier.Thresholds().FirstReminderLead)
	candidates, err := j.repo.ListInactivityCandidates(ctx, leadCutoff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var firstDue, finalDue []*models.User
	var archiveUIDs []string
	for _, u := range candidates {
		switch j.classifier.Classify(u, now) {
		case classifier.StateFirstReminderDue:
			firstDue = append(firstDue, u)
		case classifier.StateFinalReminderDue:
			finalDue = append(finalDue, u)
		case classifier.StateArchiveDue, classifier.StateInactiveUnnotified:
			archiveUIDs = append(archiveUIDs, u.UID)
		}
	}
	j.log.Info("classified inactivity candidates",
		slog.Int("candidates", len(candidates)),
		slog.Int("first_due", len(firstDue)),
		slog.Int("final_due", len(finalDue)),
		slog.Int("archive_due", len(archiveUIDs)))

	reminderReport := j.scheduler.RunPass(ctx, firstDue, finalDue, now)
	archiveReport := j.archiver.ArchiveBatch(ctx, archiveUIDs)

	report := &models.JobReport{
		CandidatesChecked:  len(candidates),
		FirstRemindersSent: len(reminderReport.FirstSent),
		FinalRemindersSent: len(reminderReport.FinalSent),
		UsersArchived:      len(archiveReport.Archived),
	}
	report.Failures = append(report.Failures, reminderReport.Failures...)
	report.Failures = append(report.Failures, archiveReport.Failed...)
	return report, nil
}

// InactiveUsers возвращает пользователей, прошедших отсечку неактивности.
// Список кешируется со сквозным чтением; после архивации кеш инвалидируется.
func (j *Job) InactiveUsers(ctx context.Context, now time.Time) ([]*models.User, error) {
	const op = "inactivity.InactiveUsers"

	var cached []*models.User
	found, err := j.cache.Get(inactiveUsersCacheKey, &cached)
	if err != nil {
		j.log.Warn("failed to read inactive users from cache", sl.Err(err))
	}
	if found {
		return cached, nil
	}

	cutoff := now.Add(-j.classifier.Thresholds().InactivityCutoff)
	users, err := j.repo.ListInactiveUsers(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := j.cache.Set(inactiveUsersCacheKey, users, inactiveUsersCacheTTL); err != nil {
		j.log.Warn("failed to cache inactive users", sl.Err(err))
	}
	return users, nil
}

// ProcessInactive архивирует всех пользователей, прошедших отсечку
// неактивности, минуя стадии напоминаний.
func (j *Job) ProcessInactive(ctx context.Context, now time.Time) (*models.ArchiveReport, error) {
	const op = "inactivity.ProcessInactive"
	users, err := j.InactiveUsers(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	uids := make([]string, 0, len(users))
	for _, u := range users {
		uids = append(uids, u.UID)
	}
	return j.archiver.ArchiveBatch(ctx, uids), nil
}
