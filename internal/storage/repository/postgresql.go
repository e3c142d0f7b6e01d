// Package repository реализует хранилище данных на основе PostgreSQL
// для управления записями пользователей. Предоставляет методы регистрации,
// чтения, постраничного обхода и обновления квоты с оптимистичной блокировкой
// по счетчику версий записи.
package repository

import (
	"context"
	"errors"
	"fmt"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"database/sql"
)

// Ошибки хранилища, различимые вызывающим кодом через errors.Is.
var (
	// ErrUserNotFound возвращается, когда пользователь с заданным ключом не существует.
	ErrUserNotFound = errors.New("user not found")
	// ErrVersionConflict возвращается, когда запись изменилась между чтением и записью.
	ErrVersionConflict = errors.New("record version conflict")
	// ErrEmailTaken возвращается при попытке регистрации с занятой почтой.
	ErrEmailTaken = errors.New("email already registered")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с пользователями.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL и проверяет его доступность.
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

// CheckDatabaseReady проверяет готовность базы данных.
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
