// Package catalog хранит справочник персонажей, карт и сценариев гачи.
// models.go описывает строки справочных таблиц и снимок каталога.
package catalog

import (
	"time"
)

// Rarity — тир редкости карты.
type Rarity string

const (
	RarityN   Rarity = "N"
	RarityR   Rarity = "R"
	RaritySR  Rarity = "SR"
	RaritySSR Rarity = "SSR"
	RarityUR  Rarity = "UR"
	RarityLR  Rarity = "LR"
)

// AllRarities — все тиры в порядке возрастания ценности.
// Порядок важен: таблицы вероятностей проверяются по этому списку.
var AllRarities = []Rarity{RarityN, RarityR, RaritySR, RaritySSR, RarityUR, RarityLR}

// Valid сообщает, известен ли тир редкости.
func (r Rarity) Valid() bool {
	for _, known := range AllRarities {
		if r == known {
			return true
		}
	}
	return false
}

// Character — строка таблицы characters.
type Character struct {
	ID        string    `db:"id"`
	Slug      string    `db:"slug"`
	Name      string    `db:"name"`
	Weight    int       `db:"weight"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

// Card — строка таблицы cards.
// MaxSupply == nil означает безлимитный тираж.
type Card struct {
	ID             string    `db:"id"`
	CharacterID    string    `db:"character_id"`
	Slug           string    `db:"slug"`
	Name           string    `db:"card_name"`
	Title          string    `db:"title"`
	Rarity         Rarity    `db:"rarity"`
	StarLevel      int       `db:"star_level"`
	ImageURL       string    `db:"card_image_url"`
	IsLossCard     bool      `db:"is_loss_card"`
	MaxSupply      *int      `db:"max_supply"`
	CurrentSupply  int       `db:"current_supply"`
	MainSceneSteps int       `db:"main_scene_steps"`
	CreatedAt      time.Time `db:"created_at"`
}

// SupplyAvailable сообщает, можно ли ещё выдавать эту карту.
func (c *Card) SupplyAvailable() bool {
	if c.IsLossCard || c.MaxSupply == nil {
		return true
	}
	return c.CurrentSupply < *c.MaxSupply
}

// PreStoryScene — один шаг пре-истории (таблица pre_stories).
// Шаги с одинаковым Pattern образуют одну цепочку роликов.
type PreStoryScene struct {
	ID              string `db:"id"`
	CharacterID     string `db:"character_id"`
	Pattern         string `db:"pattern"`
	SceneOrder      int    `db:"scene_order"`
	VideoURL        string `db:"video_url"`
	DurationSeconds int    `db:"duration_seconds"`
}

// ChanceScene — ролик фазы chance (таблица chance_scenes).
type ChanceScene struct {
	ID              string `db:"id"`
	CharacterID     string `db:"character_id"`
	Pattern         string `db:"pattern"`
	VideoURL        string `db:"video_url"`
	DurationSeconds int    `db:"duration_seconds"`
}

// ScenarioScene — ролик основной истории или разворота (таблица scenarios).
// Phase принимает значения main_story и reversal.
type ScenarioScene struct {
	ID              string  `db:"id"`
	CardID          string  `db:"card_id"`
	Phase           string  `db:"phase"`
	SceneOrder      int     `db:"scene_order"`
	VideoURL        string  `db:"video_url"`
	DurationSeconds int     `db:"duration_seconds"`
	TelopText       *string `db:"telop_text"`
	TelopType       *string `db:"telop_type"`
}

// Фазы сценария
const (
	PhasePreStory  = "pre_story"
	PhaseChance    = "chance"
	PhaseMainStory = "main_story"
	PhaseReversal  = "reversal"
)

// DondenRoute — разрешённый переход «донден» между картами персонажа.
// Граф разреженный: у большинства карт исходящих маршрутов нет.
type DondenRoute struct {
	ID          string `db:"id"`
	CharacterID string `db:"character_id"`
	FromCardID  string `db:"from_card_id"`
	ToCardID    string `db:"to_card_id"`
	Steps       int    `db:"steps"`
}

// GlobalConfig — глобальные настройки гачи (таблица gacha_config).
// LossRate — доля проигрышных круток в диапазоне [0,1].
// TitleHintRate — процент круток с подсказкой звёздности (0-100).
type GlobalConfig struct {
	Slug          string  `db:"slug"`
	LossRate      float64 `db:"loss_rate"`
	TitleHintRate int     `db:"title_hint_rate"`
}

// StarSlot — пара «звёздность, вероятность» из RTP-таблицы персонажа.
type StarSlot struct {
	Star        int     `json:"star"`
	Probability float64 `json:"probability"`
}

// RTPConfig — настройки вероятностей одного персонажа
// (таблица character_rtp_config, JSON-колонки разбираются при загрузке).
type RTPConfig struct {
	CharacterID string
	// StarSlots задаёт распределение звёздности; сумма нормализуется при крутке.
	StarSlots []StarSlot
	// DondenRate — процент донден-подмены (0-100), применяется только
	// если у выпавшей карты есть исходящий маршрут.
	DondenRate float64
	// ReversalRates — процент разворота истории по звёздности (0-100).
	ReversalRates map[int]float64
}
