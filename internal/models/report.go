package models

// UserFailure описывает ошибку обработки одного пользователя внутри прохода.
type UserFailure struct {
	UserUID string `json:"user_uid"`
	Err     string `json:"error"`
}

// ReminderReport агрегирует результат одного прохода отправки напоминаний.
type ReminderReport struct {
	FirstSent []string      `json:"first_sent"`
	FinalSent []string      `json:"final_sent"`
	Failures  []UserFailure `json:"failures,omitempty"`
}

// ArchiveReport агрегирует результат пакетной архивации.
type ArchiveReport struct {
	Archived []string      `json:"archived"`
	Failed   []UserFailure `json:"failed,omitempty"`
}

// JobReport — итоговый отчёт полного прохода проверки неактивности.
// Ошибки отдельных пользователей не прерывают проход и попадают в Failures.
type JobReport struct {
	CandidatesChecked  int           `json:"candidates_checked"`
	FirstRemindersSent int           `json:"first_reminders_sent"`
	FinalRemindersSent int           `json:"final_reminders_sent"`
	UsersArchived      int           `json:"users_archived"`
	Failures           []UserFailure `json:"failures,omitempty"`
}
