// Package award реализует идемпотентное начисление наград: превращение
// незавершённой крутки в инвентарную запись с серийным номером ровно
// один раз, какой бы из путей (клиент, cron, админ) её ни завершал.
package award

import "time"

// InventoryEntry — строка таблицы card_inventory.
// Пара (card_id, serial_number) глобально уникальна; gacha_result_id
// уникален сам по себе: у крутки не может быть двух наград.
type InventoryEntry struct {
	ID           string    `db:"id"`
	UserID       string    `db:"app_user_id"`
	CardID       string    `db:"card_id"`
	SerialNumber int       `db:"serial_number"`
	DrawRecordID string    `db:"gacha_result_id"`
	ObtainedAt   time.Time `db:"obtained_at"`
}

// Outcome — результат попытки начисления.
// DidAward == false означает «уже начислено» (вторым вызовом или
// конкурентом) — это штатный исход, не ошибка.
type Outcome struct {
	DidAward           bool            `json:"didAward"`
	Entry              *InventoryEntry `json:"entry,omitempty"`
	AlreadyOwnedBefore bool            `json:"alreadyOwnedBefore"`
}

// SweepReport — итог одного прохода фонового добора.
type SweepReport struct {
	Scanned int `json:"scanned"`
	Awarded int `json:"awarded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// BulkReport — итог массового начисления круток пользователя.
type BulkReport struct {
	Awarded int `json:"awarded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// CancelReport — итог отмены незавершённых круток с возвратом билетов.
// Refunded считается от фактически отменённых строк, а не от
// предварительной выборки: конкурирующее начисление могло успеть раньше.
type CancelReport struct {
	Cancelled     int `json:"cancelled"`
	Refunded      int `json:"refunded"`
	TicketBalance int `json:"ticketBalance"`
}

// PendingUserCount — пользователь и его хвост незавершённых круток.
type PendingUserCount struct {
	UserID       string `json:"userId"`
	PendingCount int    `json:"pendingCount"`
}

// PendingSummary — сводка по незавершённым круткам для операторской
// панели: общий хвост, просроченные и пользователи с аномально большим
// числом незавершённых круток (признак сбоя клиента или абьюза).
type PendingSummary struct {
	TotalPending int                `json:"totalPending"`
	OverdueCount int                `json:"overdueCount"`
	Suspicious   []PendingUserCount `json:"suspicious"`
}
