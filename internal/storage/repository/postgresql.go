// Package repository реализует хранилища данных на основе PostgreSQL:
// основное хранилище живых записей пользователей и отдельное архивное
// хранилище снимков. Предоставляет выборку кандидатов на неактивность,
// условные обновления флагов напоминаний и идемпотентную вставку в архив.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки уровня хранилища, различаемые сервисами через errors.Is.
var (
	// ErrUserNotFound возвращается, когда живая запись пользователя отсутствует.
	ErrUserNotFound = errors.New("user not found")
	// ErrArchivedUserNotFound возвращается, когда архивный снимок отсутствует.
	ErrArchivedUserNotFound = errors.New("archived user not found")
	// ErrVersionConflict возвращается, когда условное обновление отклонено:
	// запись изменилась между чтением и обновлением.
	ErrVersionConflict = errors.New("record changed concurrently")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// основного хранилища пользователей.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL основного хранилища.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// ArchiveStorage инкапсулирует соединение с отдельной базой архивных снимков.
type ArchiveStorage struct {
	DB *sql.DB
}

// NewArchive создаёт подключение к PostgreSQL архивного хранилища.
func NewArchive(archiveConnectionString string) (*ArchiveStorage, error) {
	const op = "storage.NewArchive"

	db, err := sql.Open("pgx", archiveConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ArchiveStorage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных основного хранилища.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'users'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table users missing or query error: %w", err)
	}
	return nil
}
