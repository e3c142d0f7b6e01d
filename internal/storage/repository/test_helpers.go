package repository

import (
	"context"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя с заданным состоянием квоты
// и возвращает его uid.
func (f *TestDataFactory) CreateUser(t *testing.T, email, route string,
	paid bool, scanCount, daysLeft int, lastScanDate time.Time) string {
	var uid string
	err := f.storage.DB.QueryRow(`INSERT INTO users
		(full_name, email, password_hash, role, route, paid, scan_count, days_left, last_scan_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING uid`,
		"Test User", email, "hashedpassword", "user", route,
		paid, scanCount, daysLeft, lastScanDate).Scan(&uid)
	require.NoError(t, err)
	return uid
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// VerifyUserQuota проверяет состояние квоты пользователя в БД
func (v *TestVerification) VerifyUserQuota(t *testing.T, userUID string,
	wantPaid bool, wantScanCount, wantDaysLeft int, wantVersion int64) {
	var paid bool
	var scanCount, daysLeft int
	var version int64
	err := v.storage.DB.QueryRow(
		`SELECT paid, scan_count, days_left, version FROM users WHERE uid = $1`, userUID).
		Scan(&paid, &scanCount, &daysLeft, &version)
	require.NoError(t, err)
	require.Equal(t, wantPaid, paid)
	require.Equal(t, wantScanCount, scanCount)
	require.Equal(t, wantDaysLeft, daysLeft)
	require.Equal(t, wantVersion, version)
}

// setupTestDatabase создает тестовую БД с контейнером PostgreSQL
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort(nat.Port("5432/tcp")),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(3*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			err = storage.DB.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	// Создаем таблицы
	_, err = storage.DB.Exec(`
        DROP TABLE IF EXISTS users CASCADE;

        CREATE EXTENSION IF NOT EXISTS "pgcrypto";

        CREATE TABLE users (
            uid UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            full_name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'user',
            route TEXT NOT NULL DEFAULT '',
            profile_pic_key TEXT NOT NULL DEFAULT '',
            profile_pdf_key TEXT NOT NULL DEFAULT '',
            verified BOOLEAN NOT NULL DEFAULT false,
            reject_message TEXT NOT NULL DEFAULT '',
            paid BOOLEAN NOT NULL DEFAULT true,
            scan_count INT NOT NULL DEFAULT 2,
            days_left INT NOT NULL DEFAULT 30,
            last_scan_date DATE,
            version BIGINT NOT NULL DEFAULT 1,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );

        CREATE INDEX idx_users_route ON users (route);
    `)
	require.NoError(t, err, "failed to create tables")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		if postgresContainer != nil {
			_ = postgresContainer.Terminate(ctx)
		}
	}

	return storage, cleanup
}
