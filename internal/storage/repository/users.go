package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/scanhub/internal/models"
)

const userColumns = `uid, full_name, email, password_hash, role, route,
			      profile_pic_key, profile_pdf_key, verified, reject_message,
			      paid, scan_count, days_left, last_scan_date, version, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var lastScanDate sql.NullTime
	if err := row.Scan(&u.UID, &u.FullName, &u.Email, &u.PasswordHash,
		&u.Role, &u.Route, &u.ProfilePicKey, &u.ProfilePDFKey,
		&u.Verified, &u.RejectMessage, &u.Paid, &u.ScanCount, &u.DaysLeft,
		&lastScanDate, &u.Version, &u.CreatedAt); err != nil {
		return nil, err
	}
	if lastScanDate.Valid {
		u.LastScanDate = lastScanDate.Time
	}
	return u, nil
}

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
// Возвращает ErrEmailTaken, если почта уже зарегистрирована.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	if err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, user.Email).Scan(&exists); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}

	var newID string
	query := `INSERT INTO users (full_name, email, password_hash, role, route,
			      profile_pic_key, profile_pdf_key, paid, scan_count, days_left, last_scan_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.FullName, user.Email, user.PasswordHash, user.Role, user.Route,
		user.ProfilePicKey, user.ProfilePDFKey, user.Paid, user.ScanCount,
		user.DaysLeft, user.LastScanDate).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUserByUID возвращает пользователя по его UID.
func (s *Storage) GetUserByUID(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUserByUID"
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

// GetUserByEmail возвращает пользователя по электронной почте.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateUserQuota записывает поля квоты пользователя при условии, что запись
// не менялась с момента чтения: сравнивается счетчик версий. При успехе
// версия увеличивается и в переданной структуре, при несовпадении версии
// возвращается ErrVersionConflict.
func (s *Storage) UpdateUserQuota(ctx context.Context, user *models.User) error {
	const op = "storage.UpdateUserQuota"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET paid = $1,
			      scan_count = $2,
			      days_left = $3,
			      last_scan_date = $4,
			      version = version + 1
			  WHERE uid = $5 AND version = $6`
	res, err := s.DB.ExecContext(ctx, query,
		user.Paid, user.ScanCount, user.DaysLeft, user.LastScanDate,
		user.UID, user.Version)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		var exists bool
		if err := s.DB.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE uid = $1)`, user.UID).Scan(&exists); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return fmt.Errorf("%s: %w", op, ErrVersionConflict)
	}
	user.Version++
	return nil
}

// SetVerification обновляет статус модерации пользователя. Запись также
// увеличивает версию, чтобы конкурирующие обновления квоты заметили изменение.
func (s *Storage) SetVerification(ctx context.Context, userUID string, verified bool, rejectMessage string) error {
	const op = "storage.SetVerification"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET verified = $1,
			      reject_message = $2,
			      version = version + 1
			  WHERE uid = $3`
	res, err := s.DB.ExecContext(ctx, query, verified, rejectMessage, userUID)
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

// ListUsersPage возвращает страницу пользователей для ежедневного обхода.
// Используется keyset-пагинация по uid: afterUID — последний uid предыдущей
// страницы, пустая строка — начало. Второе возвращаемое значение — токен
// следующей страницы, пустая строка означает конец списка.
func (s *Storage) ListUsersPage(ctx context.Context, afterUID string, limit int) ([]*models.User, string, error) {
	const op = "storage.ListUsersPage"
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE uid::text > $1
			  ORDER BY uid::text
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, afterUID, limit)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	next := ""
	if len(result) == limit {
		next = result[len(result)-1].UID
	}
	return result, next, nil
}

// CountUsersByRoute возвращает количество пользователей по каждому маршруту
// и общее число пользователей с непустым маршрутом.
func (s *Storage) CountUsersByRoute(ctx context.Context) (*models.RouteAnalytics, error) {
	const op = "storage.CountUsersByRoute"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT route, COUNT(*)
			  FROM users
			  WHERE route <> ''
			  GROUP BY route`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	analytics := &models.RouteAnalytics{Counts: make(map[string]int)}
	for rows.Next() {
		var route string
		var count int
		if err = rows.Scan(&route, &count); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		analytics.Counts[route] = count
		analytics.Total += count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return analytics, nil
}
