package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/scanhub/internal/models"
)

func TestStorage_RegisterUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	user := models.User{
		FullName:     "Test User",
		Email:        "new@example.com",
		PasswordHash: "hashedpassword",
		Role:         "user",
		Route:        "north",
		Paid:         true,
		ScanCount:    2,
		DaysLeft:     30,
		LastScanDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}

	uid, err := storage.RegisterUser(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	// повторная регистрация той же почты
	_, err = storage.RegisterUser(context.Background(), user)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestStorage_GetUserByUID(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	lastScanDate := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	uid := factory.CreateUser(t, "test@example.com", "north", true, 2, 30, lastScanDate)

	got, err := storage.GetUserByUID(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, uid, got.UID)
	assert.Equal(t, "test@example.com", got.Email)
	assert.True(t, got.Paid)
	assert.Equal(t, 2, got.ScanCount)
	assert.Equal(t, 30, got.DaysLeft)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, lastScanDate.Year(), got.LastScanDate.Year())
	assert.Equal(t, lastScanDate.Month(), got.LastScanDate.Month())
	assert.Equal(t, lastScanDate.Day(), got.LastScanDate.Day())

	_, err = storage.GetUserByUID(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_GetUserByEmail(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "test@example.com", "north", true, 2, 30, time.Now())

	got, err := storage.GetUserByEmail(context.Background(), "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, uid, got.UID)

	_, err = storage.GetUserByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_UpdateUserQuota(t *testing.T) {
	t.Run("successful update bumps version", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		uid := factory.CreateUser(t, "test@example.com", "north", true, 2, 30, time.Now())

		user, err := storage.GetUserByUID(context.Background(), uid)
		require.NoError(t, err)

		user.ScanCount = 1
		user.DaysLeft = 29
		err = storage.UpdateUserQuota(context.Background(), user)
		require.NoError(t, err)
		assert.Equal(t, int64(2), user.Version)

		verification := NewTestVerification(storage)
		verification.VerifyUserQuota(t, uid, true, 1, 29, 2)
	})

	t.Run("stale version returns conflict", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		uid := factory.CreateUser(t, "test@example.com", "north", true, 2, 30, time.Now())

		first, err := storage.GetUserByUID(context.Background(), uid)
		require.NoError(t, err)
		second, err := storage.GetUserByUID(context.Background(), uid)
		require.NoError(t, err)

		first.ScanCount = 1
		require.NoError(t, storage.UpdateUserQuota(context.Background(), first))

		// вторая копия несет устаревшую версию
		second.ScanCount = 0
		err = storage.UpdateUserQuota(context.Background(), second)
		assert.ErrorIs(t, err, ErrVersionConflict)

		verification := NewTestVerification(storage)
		verification.VerifyUserQuota(t, uid, true, 1, 30, 2)
	})

	t.Run("missing user returns not found", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		user := &models.User{
			UID:          "550e8400-e29b-41d4-a716-446655440000",
			Paid:         true,
			ScanCount:    1,
			DaysLeft:     1,
			LastScanDate: time.Now(),
			Version:      1,
		}
		err := storage.UpdateUserQuota(context.Background(), user)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestStorage_SetVerification(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	uid := factory.CreateUser(t, "test@example.com", "north", true, 2, 30, time.Now())

	err := storage.SetVerification(context.Background(), uid, false, "illegible documents")
	require.NoError(t, err)

	got, err := storage.GetUserByUID(context.Background(), uid)
	require.NoError(t, err)
	assert.False(t, got.Verified)
	assert.Equal(t, "illegible documents", got.RejectMessage)
	// запись модерации тоже двигает версию
	assert.Equal(t, int64(2), got.Version)

	err = storage.SetVerification(context.Background(), "550e8400-e29b-41d4-a716-446655440000", true, "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStorage_ListUsersPage(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	for i := range 5 {
		factory.CreateUser(t, fmt.Sprintf("user%d@example.com", i), "north", true, 2, 30, time.Now())
	}

	seen := map[string]bool{}
	token := ""
	pages := 0
	for {
		users, next, err := storage.ListUsersPage(context.Background(), token, 2)
		require.NoError(t, err)
		pages++
		for _, u := range users {
			assert.False(t, seen[u.UID], "user %s returned twice", u.UID)
			seen[u.UID] = true
		}
		if next == "" {
			break
		}
		token = next
	}

	assert.Len(t, seen, 5)
	assert.GreaterOrEqual(t, pages, 3)
}

func TestStorage_CountUsersByRoute(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	factory.CreateUser(t, "a@example.com", "north", true, 2, 30, time.Now())
	factory.CreateUser(t, "b@example.com", "north", true, 2, 30, time.Now())
	factory.CreateUser(t, "c@example.com", "south", true, 2, 30, time.Now())
	// пользователь без маршрута не попадает в аналитику
	factory.CreateUser(t, "d@example.com", "", true, 2, 30, time.Now())

	got, err := storage.CountUsersByRoute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Counts["north"])
	assert.Equal(t, 1, got.Counts["south"])
	assert.Equal(t, 3, got.Total)
}
