package models

import (
	"encoding/json"
	"time"
)

// ArchivedUser представляет архивный снимок пользователя в архивном хранилище.
// OriginalID — идентификатор уже удалённой живой записи, используется только
// как ключ поиска. Поле UserData хранит полный сериализованный снимок записи
// на момент архивации и никогда не разбирается структурно — его контракт
// только в точном воспроизведении исходных данных для аудита и восстановления.
type ArchivedUser struct {
	OriginalID   string          `json:"original_id"`    // Идентификатор исходной записи пользователя
	Email        string          `json:"email"`          // Электронная почта на момент архивации
	Username     string          `json:"username"`       // Имя пользователя на момент архивации
	Subscription Subscription    `json:"subscription"`   // Снимок состояния подписки
	LastActiveAt time.Time       `json:"last_active_at"` // Время последней активности на момент архивации
	UserData     json.RawMessage `json:"user_data"`      // Полный сериализованный снимок записи
	ArchivedAt   time.Time       `json:"archived_at"`    // Время архивации, неизменяемо
}
