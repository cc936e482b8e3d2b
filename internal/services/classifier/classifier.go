// Package classifier содержит чистую функцию классификации активности пользователя.
//
// Состояние не хранится: оно каждый раз выводится заново из записи пользователя
// и текущего времени, поэтому два вызова с одинаковыми аргументами всегда дают
// одинаковый результат. Два булевых флага напоминаний вместе с меткой времени
// кодируют машину состояний "не напомнили → первое напоминание → финальное
// напоминание → архивация"; здесь она представлена явным перечислением,
// чтобы порядок приоритетов был проверяем изолированно.
package classifier

import (
	"time"

	"github.com/edtechhq/user-lifecycle/internal/models"
)

// ActivityState — состояние активности пользователя на момент прохода.
type ActivityState int

// Возможные состояния в порядке возрастания "запущенности".
const (
	StateActive ActivityState = iota
	StateApproachingInactive
	StateInactiveUnnotified
	StateFirstReminderDue
	StateFinalReminderDue
	StateArchiveDue
)

func (s ActivityState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateApproachingInactive:
		return "approaching_inactive"
	case StateInactiveUnnotified:
		return "inactive_unnotified"
	case StateFirstReminderDue:
		return "first_reminder_due"
	case StateFinalReminderDue:
		return "final_reminder_due"
	case StateArchiveDue:
		return "archive_due"
	default:
		return "unknown"
	}
}

// Thresholds задаёт пороги классификации.
type Thresholds struct {
	InactivityCutoff    time.Duration // Жёсткая отсечка неактивности
	FirstReminderLead   time.Duration // Возраст неактивности, с которого открывается окно первого напоминания
	FirstReminderWindow time.Duration // Ширина окна первого напоминания
	FinalReminderDelay  time.Duration // Пауза между первым и финальным напоминанием
	ArchiveDelay        time.Duration // Пауза между финальным напоминанием и архивацией
}

const day = 24 * time.Hour

// DefaultThresholds возвращает пороги по умолчанию: отсечка 90 дней,
// окно первого напоминания [75; 82) дней, по 7 дней на каждую следующую стадию.
func DefaultThresholds() Thresholds {
	return Thresholds{
		InactivityCutoff:    90 * day,
		FirstReminderLead:   75 * day,
		FirstReminderWindow: 7 * day,
		FinalReminderDelay:  7 * day,
		ArchiveDelay:        7 * day,
	}
}

// ThresholdsFromDays собирает пороги из значений конфигурации, заданных в днях.
func ThresholdsFromDays(cutoff, lead, window, finalDelay, archiveDelay int) Thresholds {
	return Thresholds{
		InactivityCutoff:    time.Duration(cutoff) * day,
		FirstReminderLead:   time.Duration(lead) * day,
		FirstReminderWindow: time.Duration(window) * day,
		FinalReminderDelay:  time.Duration(finalDelay) * day,
		ArchiveDelay:        time.Duration(archiveDelay) * day,
	}
}

// Classifier вычисляет состояние активности пользователя по заданным порогам.
type Classifier struct {
	th Thresholds
}

// New создает новый экземпляр Classifier.
func New(th Thresholds) *Classifier {
	return &Classifier{th: th}
}

// Thresholds возвращает пороги, с которыми работает классификатор.
func (c *Classifier) Thresholds() Thresholds {
	return c.th
}

// Classify возвращает состояние активности пользователя на момент now.
//
// Порядок проверок фиксирован, выигрывает первое совпадение: переходы машины
// напоминаний имеют приоритет над "сырой" 90-дневной неактивностью, поэтому
// пользователь, которому уже отправлено напоминание, не уходит в архив мимо
// оставшихся стадий.
func (c *Classifier) Classify(u *models.User, now time.Time) ActivityState {
	if u.FinalReminderSent && c.reminderOlderThan(u, now, c.th.ArchiveDelay) {
		return StateArchiveDue
	}
	if u.FirstReminderSent && !u.FinalReminderSent && c.reminderOlderThan(u, now, c.th.FinalReminderDelay) {
		return StateFinalReminderDue
	}
	if !u.FirstReminderSent {
		if trigger, ok := earliestTrigger(u); ok && c.inFirstReminderWindow(trigger, now) {
			return StateFirstReminderDue
		}
	}
	eligible := c.inactivityEligible(u, now)
	if eligible && !u.FirstReminderSent && !u.FinalReminderSent {
		// Пользователь проскочил оба окна напоминаний — прямой путь в архив.
		return StateInactiveUnnotified
	}
	if eligible {
		return StateApproachingInactive
	}
	return StateActive
}

// reminderOlderThan сообщает, прошло ли после последнего напоминания больше delay.
// Отсутствующая метка времени означает, что пауза ещё не истекла.
func (c *Classifier) reminderOlderThan(u *models.User, now time.Time, delay time.Duration) bool {
	if u.LastReminderSentAt == nil {
		return false
	}
	return u.LastReminderSentAt.Before(now.Add(-delay))
}

// inFirstReminderWindow проверяет попадание опорной метки времени в окно
// [now-lead-window; now-lead): нижняя граница включена, верхняя — нет.
func (c *Classifier) inFirstReminderWindow(trigger, now time.Time) bool {
	windowStart := now.Add(-(c.th.FirstReminderLead + c.th.FirstReminderWindow))
	windowEnd := now.Add(-c.th.FirstReminderLead)
	return !trigger.Before(windowStart) && trigger.Before(windowEnd)
}

// inactivityEligible проверяет три условия неактивности на 90-дневной отсечке:
// (a) нет покупок подписки, (b) отменённая/истёкшая подписка без новой,
// (c) нет входов в систему. Достаточно любого из условий.
func (c *Classifier) inactivityEligible(u *models.User, now time.Time) bool {
	cutoff := now.Add(-c.th.InactivityCutoff)
	if p := u.Subscription.LastPurchaseDate; p != nil && p.Before(cutoff) {
		return true
	}
	if subscriptionLapsed(u) {
		if e := u.Subscription.EndDate; e != nil && e.Before(cutoff) {
			return true
		}
	}
	if !u.LastLoginAt.IsZero() && u.LastLoginAt.Before(cutoff) {
		return true
	}
	return false
}

func subscriptionLapsed(u *models.User) bool {
	return u.Subscription.Status == models.SubscriptionStatusCancelled ||
		u.Subscription.Status == models.SubscriptionStatusExpired
}

// earliestTrigger возвращает самую раннюю из опорных меток времени трёх условий
// неактивности — ту, по которой неактивность наступит первой.
func earliestTrigger(u *models.User) (time.Time, bool) {
	var trigger time.Time
	var found bool

	consider := func(t time.Time) {
		if !found || t.Before(trigger) {
			trigger = t
			found = true
		}
	}

	if p := u.Subscription.LastPurchaseDate; p != nil {
		consider(*p)
	}
	if subscriptionLapsed(u) {
		if e := u.Subscription.EndDate; e != nil {
			consider(*e)
		}
	}
	if !u.LastLoginAt.IsZero() {
		consider(u.LastLoginAt)
	}
	return trigger, found
}
