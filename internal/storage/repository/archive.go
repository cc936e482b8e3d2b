package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/edtechhq/user-lifecycle/internal/models"
)

const archivedUserColumns = `original_id, email, username,
	      subscription_plan, subscription_status, subscription_end_date,
	      subscription_last_purchase_date, subscription_payment_method,
	      last_active_at, user_data, archived_at`

func scanArchivedUser(row interface{ Scan(...any) error }) (*models.ArchivedUser, error) {
	rec := &models.ArchivedUser{}
	var endDate, lastPurchaseDate sql.NullTime
	var paymentMethod sql.NullString
	if err := row.Scan(&rec.OriginalID, &rec.Email, &rec.Username,
		&rec.Subscription.Plan, &rec.Subscription.Status, &endDate,
		&lastPurchaseDate, &paymentMethod,
		&rec.LastActiveAt, &rec.UserData, &rec.ArchivedAt); err != nil {
		return nil, err
	}
	if endDate.Valid {
		rec.Subscription.EndDate = &endDate.Time
	}
	if lastPurchaseDate.Valid {
		rec.Subscription.LastPurchaseDate = &lastPurchaseDate.Time
	}
	if paymentMethod.Valid {
		rec.Subscription.PaymentMethod = paymentMethod.String
	}
	return rec, nil
}

// InsertArchivedUser сохраняет архивный снимок. Вставка идемпотентна:
// при уже существующем снимке с тем же original_id ничего не меняется
// и возвращается inserted=false. Инвариант "не больше одного снимка на
// original_id" обеспечивает первичный ключ.
func (s *ArchiveStorage) InsertArchivedUser(ctx context.Context, rec *models.ArchivedUser) (bool, error) {
	const op = "storage.InsertArchivedUser"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO archived_users
			      (original_id, email, username,
			       subscription_plan, subscription_status, subscription_end_date,
			       subscription_last_purchase_date, subscription_payment_method,
			       last_active_at, user_data, archived_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  ON CONFLICT (original_id) DO NOTHING`
	res, err := s.DB.ExecContext(ctx, query,
		rec.OriginalID, rec.Email, rec.Username,
		rec.Subscription.Plan, rec.Subscription.Status, rec.Subscription.EndDate,
		rec.Subscription.LastPurchaseDate, nullIfEmpty(rec.Subscription.PaymentMethod),
		rec.LastActiveAt, []byte(rec.UserData), rec.ArchivedAt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}

// GetArchivedUser возвращает архивный снимок по идентификатору исходной записи.
func (s *ArchiveStorage) GetArchivedUser(ctx context.Context, originalID string) (*models.ArchivedUser, error) {
	const op = "storage.GetArchivedUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + archivedUserColumns + `
			  FROM archived_users
			  WHERE original_id = $1`
	rec, err := scanArchivedUser(s.DB.QueryRowContext(ctx, query, originalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrArchivedUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

// ListArchivedUsers возвращает архивные снимки с пагинацией,
// отсортированные от самых свежих.
func (s *ArchiveStorage) ListArchivedUsers(ctx context.Context, limit, offset int) ([]*models.ArchivedUser, error) {
	const op = "storage.ListArchivedUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + archivedUserColumns + `
			  FROM archived_users
			  ORDER BY archived_at DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var result []*models.ArchivedUser
	for rows.Next() {
		rec, err := scanArchivedUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
