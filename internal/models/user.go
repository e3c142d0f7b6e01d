// Package models содержит доменную модель пользователя сервиса сканирования,
// включающую данные учётной записи, дневную квоту сканирований и состояние
// подписки. Структура используется в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
//
// Поля квоты (ScanCount, DaysLeft, Paid, LastScanDate) управляются движком
// ежедневного сброса, поля Verified и RejectMessage — процессом модерации.
// Version увеличивается при каждой записи и служит для оптимистичной
// блокировки: конкурирующие обновления одной записи не теряются.
type User struct {
	UID           string    // Уникальный идентификатор пользователя
	FullName      string    // Полное имя пользователя
	Email         string    // Электронная почта (уникальная, используется для входа)
	PasswordHash  string    // Хэш пароля пользователя
	Role          string    // Роль пользователя, admin или user
	Route         string    // Маршрут, выбранный при регистрации
	ProfilePicKey string    // Ключ фотографии профиля в объектном хранилище
	ProfilePDFKey string    // Ключ PDF-документа в объектном хранилище
	Verified      bool      // Подтверждён ли пользователь администратором
	RejectMessage string    // Сообщение администратора при отклонении
	Paid          bool      // Активна ли подписка
	ScanCount     int       // Остаток сканирований на текущий день
	DaysLeft      int       // Остаток дней подписки
	LastScanDate  time.Time // Дата последней оценки суточного сброса
	Version       int64     // Счетчик версий записи для compare-and-swap
	CreatedAt     time.Time // Дата регистрации
}

// Status описывает видимое пользователю состояние квоты и подписки.
type Status struct {
	Paid          bool   `json:"paid"`
	DaysLeft      int    `json:"days_left"`
	ScanCount     int    `json:"scan_count"`
	Verified      bool   `json:"verified"`
	RejectMessage string `json:"reject_message,omitempty"`
}

// RouteAnalytics содержит количество пользователей по каждому маршруту.
type RouteAnalytics struct {
	Counts map[string]int `json:"data"`
	Total  int            `json:"total"`
}
