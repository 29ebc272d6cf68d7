// Package gacha — models.go описывает результат крутки, сценарий показа
// и персистентные записи.
package gacha

import (
	"encoding/json"
	"time"

	"github.com/jinjinsansan/tensei-sub001/internal/features/catalog"
)

// DrawResult — итог одной крутки. Создаётся один раз, неизменяем,
// в том же виде сохраняется в запись крутки.
type DrawResult struct {
	IsLoss           bool           `json:"isLoss"`
	CharacterID      string         `json:"characterId"`
	CardID           string         `json:"cardId"`
	Rarity           catalog.Rarity `json:"rarity"`
	StarRating       int            `json:"starRating"`
	CardName         string         `json:"cardName"`
	CardTitle        string         `json:"cardTitle"`
	CardImageURL     string         `json:"cardImageUrl"`
	IsReversal       bool           `json:"isReversal"`
	IsDonden         bool           `json:"isDonden"`
	DondenFromCardID string         `json:"dondenFromCardId,omitempty"`
	DondenSteps      int            `json:"dondenSteps,omitempty"`
}

// VideoSegment — один ролик сценария показа.
type VideoSegment struct {
	ID              string  `json:"id"`
	Phase           string  `json:"phase"`
	Order           int     `json:"order"`
	VideoURL        string  `json:"videoUrl"`
	DurationSeconds int     `json:"durationSeconds"`
	TelopText       *string `json:"telopText,omitempty"`
	TelopType       *string `json:"telopType,omitempty"`
}

// TitleHint — подсказка звёздности перед показом. У части круток подсказка
// «настоящая» (звёздность реальной карты), у остальных — приманка.
type TitleHint struct {
	Enabled     bool   `json:"enabled"`
	VideoCardID string `json:"videoCardId,omitempty"`
	StarDisplay int    `json:"starDisplay,omitempty"`
	IsRealCard  bool   `json:"isRealCard,omitempty"`
}

// StoryPayload — полный сценарий показа одной крутки.
// Детерминированно выводится из DrawResult и снимка каталога:
// при потере его можно пересобрать с тем же RNG и получить байт в байт
// тот же результат.
type StoryPayload struct {
	StarLevel     int                `json:"starLevel"`
	HadReversal   bool               `json:"hadReversal"`
	CharacterID   string             `json:"characterId"`
	CardID        string             `json:"cardId"`
	StandbyColor  StandbyColor       `json:"standbyColor"`
	Countdown     CountdownSelection `json:"countdown"`
	TitleHint     TitleHint          `json:"titleHint"`
	PreStory      []VideoSegment     `json:"preStory"`
	Chance        []VideoSegment     `json:"chance"`
	MainStory     []VideoSegment     `json:"mainStory"`
	ReversalStory []VideoSegment     `json:"reversalStory"`
}

// TotalDurationSeconds — суммарная длительность всех роликов сценария.
func (p *StoryPayload) TotalDurationSeconds() int {
	total := 0
	for _, group := range [][]VideoSegment{p.PreStory, p.Chance, p.MainStory, p.ReversalStory} {
		for _, seg := range group {
			total += seg.DurationSeconds
		}
	}
	return total
}

// Статусы записи истории
const (
	HistoryPending   = "pending"
	HistorySuccess   = "success"
	HistoryCancelled = "cancelled"
)

// Типы крутки
const (
	GachaTypeSingle  = "single"
	GachaTypeTenfold = "tenfold"
)

// DrawRecord — персистентная запись крутки (таблица gacha_results).
// Поле Settled переходит false→true ровно один раз; обратный переход
// невозможен, отмена — тоже терминальное состояние (через HistoryRecord).
type DrawRecord struct {
	ID             string          `db:"id"`
	UserID         string          `db:"app_user_id"`
	SessionID      string          `db:"session_id"`
	MultiSessionID *string         `db:"multi_session_id"`
	CharacterID    string          `db:"character_id"`
	CardID         string          `db:"card_id"`
	StarLevel      int             `db:"star_level"`
	HadReversal    bool            `db:"had_reversal"`
	Settled        bool            `db:"card_awarded"`
	Result         json.RawMessage `db:"result_snapshot"`
	Scenario       json.RawMessage `db:"scenario_snapshot"`
	HistoryID      string          `db:"history_id"`
	ObtainedVia    string          `db:"obtained_via"`
	CreatedAt      time.Time       `db:"created_at"`
	CompletedAt    *time.Time      `db:"completed_at"`
}

// HistoryRecord — запись статусного леджера (таблица gacha_history).
// Связана с DrawRecord один к одному.
type HistoryRecord struct {
	ID        string    `db:"id"`
	UserID    string    `db:"app_user_id"`
	SessionID string    `db:"session_id"`
	StarLevel int       `db:"star_level"`
	Status    string    `db:"status"`
	Detail    *string   `db:"detail"`
	GachaType string    `db:"gacha_type"`
	CreatedAt time.Time `db:"created_at"`
}

// MultiSession — сессия мульти-крутки (таблица multi_gacha_sessions).
type MultiSession struct {
	ID             string    `db:"id"`
	UserID         string    `db:"app_user_id"`
	TotalPulls     int       `db:"total_pulls"`
	PullsCompleted int       `db:"pulls_completed"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Статусы мульти-сессии
const (
	MultiRunning   = "running"
	MultiCompleted = "completed"
	MultiError     = "error"
)

// Pull — одна крутка в ответе оркестратора: запись плюс материалы показа.
type Pull struct {
	Record *DrawRecord  `json:"record"`
	Result DrawResult   `json:"result"`
	Story  StoryPayload `json:"story"`
}

// PlayResponse — ответ на крутку: все созданные записи и новый баланс.
type PlayResponse struct {
	Pulls         []Pull        `json:"pulls"`
	MultiSession  *MultiSession `json:"multiSession,omitempty"`
	TicketBalance int           `json:"ticketBalance"`
}
