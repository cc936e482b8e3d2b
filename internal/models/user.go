// Package models содержит доменные структуры сервиса жизненного цикла пользователей:
// живую запись пользователя с данными подписки и флагами напоминаний,
// архивный снимок пользователя и агрегированные отчёты фоновых проходов.
package models

import "time"

// Subscription описывает состояние подписки пользователя.
// Даты могут отсутствовать (nil) — например, у бессрочной подписки нет EndDate,
// а у пользователя без покупок нет LastPurchaseDate.
type Subscription struct {
	Plan             string     `json:"plan"`                         // Тарифный план: none, free, basic, premium, enterprise
	Status           string     `json:"status"`                       // Статус: active, cancelled, expired, pending
	EndDate          *time.Time `json:"end_date,omitempty"`           // Дата окончания подписки
	LastPurchaseDate *time.Time `json:"last_purchase_date,omitempty"` // Дата последней покупки или продления
	PaymentMethod    string     `json:"payment_method"`               // Способ оплаты
}

// Статусы подписки, используемые при проверках неактивности.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusPending   = "pending"
)

// User представляет живую запись пользователя в основном хранилище.
// Поля FirstReminderSent, FinalReminderSent и LastReminderSentAt ведёт
// только сервис напоминаний; остальные поля обновляются извне.
type User struct {
	UID                string       `json:"uid"`                             // Уникальный идентификатор пользователя
	Email              string       `json:"email"`                           // Электронная почта
	Username           string       `json:"username"`                        // Имя пользователя (уникальное)
	Role               string       `json:"role"`                            // Роль пользователя, admin или user
	Subscription       Subscription `json:"subscription"`                    // Текущее состояние подписки
	LastLoginAt        time.Time    `json:"last_login_at"`                   // Время последнего входа
	LastActiveAt       time.Time    `json:"last_active_at"`                  // Время последней активности
	FirstReminderSent  bool         `json:"first_reminder_sent"`             // Отправлено ли первое напоминание
	FinalReminderSent  bool         `json:"final_reminder_sent"`             // Отправлено ли финальное напоминание
	LastReminderSentAt *time.Time   `json:"last_reminder_sent_at,omitempty"` // Время последней отправки напоминания (любой стадии)
	CreatedAt          time.Time    `json:"created_at"`                      // Время создания записи
}
