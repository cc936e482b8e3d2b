package models

// Стадии напоминаний, передаваемые в сообщениях очереди уведомлений.
const (
	ReminderStageFirst = "first"
	ReminderStageFinal = "final"
)

// ReminderMessage — сообщение очереди уведомлений об отправке напоминания
// пользователю. Публикуется планировщиком и потребляется сервисом отправки писем.
type ReminderMessage struct {
	UserUID  string `json:"user_uid"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Stage    string `json:"stage"`
}
