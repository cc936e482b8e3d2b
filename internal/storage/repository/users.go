package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edtechhq/user-lifecycle/internal/models"
)

const userColumns = `uid, email, username, role,
	      subscription_plan, subscription_status, subscription_end_date,
	      subscription_last_purchase_date, subscription_payment_method,
	      last_login_at, last_active_at,
	      first_reminder_sent, final_reminder_sent, last_reminder_sent_at,
	      created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var endDate, lastPurchaseDate, lastReminderSentAt sql.NullTime
	var paymentMethod sql.NullString
	if err := row.Scan(&u.UID, &u.Email, &u.Username, &u.Role,
		&u.Subscription.Plan, &u.Subscription.Status, &endDate,
		&lastPurchaseDate, &paymentMethod,
		&u.LastLoginAt, &u.LastActiveAt,
		&u.FirstReminderSent, &u.FinalReminderSent, &lastReminderSentAt,
		&u.CreatedAt); err != nil {
		return nil, err
	}
	if endDate.Valid {
		u.Subscription.EndDate = &endDate.Time
	}
	if lastPurchaseDate.Valid {
		u.Subscription.LastPurchaseDate = &lastPurchaseDate.Time
	}
	if paymentMethod.Valid {
		u.Subscription.PaymentMethod = paymentMethod.String
	}
	if lastReminderSentAt.Valid {
		u.LastReminderSentAt = &lastReminderSentAt.Time
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// ListInactivityCandidates возвращает надмножество пользователей, которых имеет
// смысл классифицировать: любая из опорных меток старше leadCutoff либо уже
// выставлен один из флагов напоминаний. Фильтр только сокращает объём чтения,
// итоговое состояние определяет классификатор.
func (s *Storage) ListInactivityCandidates(ctx context.Context, leadCutoff time.Time) ([]*models.User, error) {
	const op = "storage.ListInactivityCandidates"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE first_reminder_sent
			     OR final_reminder_sent
			     OR subscription_last_purchase_date < $1
			     OR (subscription_status IN ('cancelled', 'expired') AND subscription_end_date < $1)
			     OR last_login_at < $1`
	return s.listUsers(ctx, op, query, leadCutoff)
}

// ListInactiveUsers возвращает пользователей, выполняющих хотя бы одно из трёх
// условий неактивности на жёсткой отсечке cutoff.
func (s *Storage) ListInactiveUsers(ctx context.Context, cutoff time.Time) ([]*models.User, error) {
	const op = "storage.ListInactiveUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE subscription_last_purchase_date < $1
			     OR (subscription_status IN ('cancelled', 'expired') AND subscription_end_date < $1)
			     OR last_login_at < $1`
	return s.listUsers(ctx, op, query, cutoff)
}

func (s *Storage) listUsers(ctx context.Context, op, query string, args ...any) ([]*models.User, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkFirstReminderSent выставляет флаг первого напоминания. Обновление условное:
// оно проходит только если запись всё ещё без флага и с тем же last_login_at,
// который наблюдался при классификации. Возвращает ErrVersionConflict, если
// запись успела измениться, и ErrUserNotFound, если она исчезла.
func (s *Storage) MarkFirstReminderSent(ctx context.Context, userUID string, sentAt, observedLastLogin time.Time) error {
	const op = "storage.MarkFirstReminderSent"

	query := `UPDATE users
			  SET first_reminder_sent = TRUE,
			      last_reminder_sent_at = $2
			  WHERE uid = $1
			    AND NOT first_reminder_sent
			    AND last_login_at = $3`
	return s.conditionalUpdate(ctx, op, query, userUID, sentAt, observedLastLogin)
}

// MarkFinalReminderSent выставляет флаг финального напоминания. Требует уже
// выставленного первого флага, что сохраняет монотонность стадий.
func (s *Storage) MarkFinalReminderSent(ctx context.Context, userUID string, sentAt, observedLastLogin time.Time) error {
	const op = "storage.MarkFinalReminderSent"

	query := `UPDATE users
			  SET final_reminder_sent = TRUE,
			      last_reminder_sent_at = $2
			  WHERE uid = $1
			    AND first_reminder_sent
			    AND NOT final_reminder_sent
			    AND last_login_at = $3`
	return s.conditionalUpdate(ctx, op, query, userUID, sentAt, observedLastLogin)
}

func (s *Storage) conditionalUpdate(ctx context.Context, op, query string, userUID string, sentAt, observedLastLogin time.Time) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, query, userUID, sentAt, observedLastLogin)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE uid = $1)`, userUID).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return fmt.Errorf("%s: %w", op, ErrVersionConflict)
}

// DeleteUser удаляет живую запись пользователя. Возвращает ErrUserNotFound,
// если записи уже нет.
func (s *Storage) DeleteUser(ctx context.Context, userUID string) error {
	const op = "storage.DeleteUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}
