// Package catalog — snapshot.go собирает неизменяемый снимок каталога.
// Снимок загружается один раз на крутку: движок вероятностей работает
// с ним детерминированно и не ходит в БД.
package catalog

import (
	"fmt"
	"sort"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
)

// Snapshot — неизменяемый снимок каталога на момент загрузки.
// Все срезы отсортированы, чтобы порядок обхода был воспроизводим.
type Snapshot struct {
	characters  []Character
	cards       map[string]*Card             // card_id → карта
	byCharacter map[string][]*Card           // character_id → карты
	preStories  map[string][][]PreStoryScene // character_id → паттерны пре-истории
	chance      map[string][]ChanceScene     // character_id → ролики chance
	scenarios   map[string][]ScenarioScene   // card_id → сценарий
	dondenFrom  map[string][]DondenRoute     // from_card_id → маршруты
	global      GlobalConfig
	rtp         map[string]*RTPConfig // character_id → RTP
}

// Global возвращает глобальные настройки гачи.
func (s *Snapshot) Global() GlobalConfig { return s.global }

// ActiveCharacters возвращает активных персонажей с положительным весом.
func (s *Snapshot) ActiveCharacters() []Character {
	out := make([]Character, 0, len(s.characters))
	for _, c := range s.characters {
		if c.IsActive && c.Weight > 0 {
			out = append(out, c)
		}
	}
	return out
}

// CharacterByID ищет персонажа по идентификатору.
func (s *Snapshot) CharacterByID(id string) (*Character, error) {
	for i := range s.characters {
		if s.characters[i].ID == id {
			return &s.characters[i], nil
		}
	}
	return nil, fmt.Errorf("персонаж %s: %w", id, common.ErrNotFoundCardOrUser)
}

// CardByID ищет карту по идентификатору.
func (s *Snapshot) CardByID(id string) (*Card, error) {
	card, ok := s.cards[id]
	if !ok {
		return nil, fmt.Errorf("карта %s: %w", id, common.ErrNotFoundCardOrUser)
	}
	return card, nil
}

// PlayableCards возвращает карты персонажа, доступные к выдаче:
// без LOSS-карты и без карт с исчерпанным тиражом.
func (s *Snapshot) PlayableCards(characterID string) []*Card {
	all := s.byCharacter[characterID]
	out := make([]*Card, 0, len(all))
	for _, card := range all {
		if card.IsLossCard || !card.SupplyAvailable() {
			continue
		}
		out = append(out, card)
	}
	return out
}

// LossCard возвращает LOSS-карту персонажа, если она настроена.
func (s *Snapshot) LossCard(characterID string) *Card {
	for _, card := range s.byCharacter[characterID] {
		if card.IsLossCard {
			return card
		}
	}
	return nil
}

// RTP возвращает RTP-настройки персонажа.
func (s *Snapshot) RTP(characterID string) (*RTPConfig, error) {
	cfg, ok := s.rtp[characterID]
	if !ok {
		return nil, fmt.Errorf("RTP для персонажа %s не настроен: %w", characterID, common.ErrNotFoundCardOrUser)
	}
	return cfg, nil
}

// PreStoryPatterns возвращает паттерны пре-истории персонажа.
// Каждый элемент — упорядоченная по scene_order цепочка шагов.
func (s *Snapshot) PreStoryPatterns(characterID string) [][]PreStoryScene {
	return s.preStories[characterID]
}

// ChanceScenes возвращает ролики фазы chance персонажа.
func (s *Snapshot) ChanceScenes(characterID string) []ChanceScene {
	return s.chance[characterID]
}

// Scenarios возвращает сценарий карты, упорядоченный по scene_order.
func (s *Snapshot) Scenarios(cardID string) []ScenarioScene {
	return s.scenarios[cardID]
}

// DondenRoutesFrom возвращает исходящие донден-маршруты карты.
// Пустой срез — нормальный случай: у карты просто нет подмены.
func (s *Snapshot) DondenRoutesFrom(cardID string) []DondenRoute {
	return s.dondenFrom[cardID]
}

// NewSnapshot валидирует сырые строки каталога и собирает из них снимок.
// Ошибка валидации здесь гарантирует, что движок вероятностей никогда
// не увидит пустую или нулевую таблицу весов.
func NewSnapshot(
	characters []Character,
	cards []Card,
	preStories []PreStoryScene,
	chance []ChanceScene,
	scenarios []ScenarioScene,
	routes []DondenRoute,
	global GlobalConfig,
	rtp []*RTPConfig,
) (*Snapshot, error) {
	if err := validateGlobal(global); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		characters:  characters,
		cards:       make(map[string]*Card, len(cards)),
		byCharacter: make(map[string][]*Card),
		preStories:  make(map[string][][]PreStoryScene),
		chance:      make(map[string][]ChanceScene),
		scenarios:   make(map[string][]ScenarioScene),
		dondenFrom:  make(map[string][]DondenRoute),
		global:      global,
		rtp:         make(map[string]*RTPConfig, len(rtp)),
	}

	for i := range cards {
		card := &cards[i]
		if !card.Rarity.Valid() {
			return nil, fmt.Errorf("карта %s: неизвестная редкость %q: %w", card.ID, card.Rarity, common.ErrValidation)
		}
		snap.cards[card.ID] = card
		snap.byCharacter[card.CharacterID] = append(snap.byCharacter[card.CharacterID], card)
	}
	for _, cc := range snap.byCharacter {
		sort.Slice(cc, func(i, j int) bool { return cc[i].Slug < cc[j].Slug })
	}

	for _, cfg := range rtp {
		if err := validateRTP(cfg); err != nil {
			return nil, err
		}
		snap.rtp[cfg.CharacterID] = cfg
	}
	for _, c := range characters {
		if !c.IsActive || c.Weight <= 0 {
			continue
		}
		if _, ok := snap.rtp[c.ID]; !ok {
			return nil, fmt.Errorf("у активного персонажа %s нет RTP-конфига: %w", c.Slug, common.ErrValidation)
		}
		if len(snap.PlayableCards(c.ID)) == 0 {
			return nil, fmt.Errorf("у активного персонажа %s нет доступных карт: %w", c.Slug, common.ErrValidation)
		}
	}

	// Пре-истории группируются по паттерну, внутри — по scene_order
	grouped := make(map[string]map[string][]PreStoryScene)
	for _, scene := range preStories {
		if grouped[scene.CharacterID] == nil {
			grouped[scene.CharacterID] = make(map[string][]PreStoryScene)
		}
		grouped[scene.CharacterID][scene.Pattern] = append(grouped[scene.CharacterID][scene.Pattern], scene)
	}
	for charID, patterns := range grouped {
		names := make([]string, 0, len(patterns))
		for name := range patterns {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			steps := patterns[name]
			sort.Slice(steps, func(i, j int) bool { return steps[i].SceneOrder < steps[j].SceneOrder })
			snap.preStories[charID] = append(snap.preStories[charID], steps)
		}
	}

	for _, scene := range chance {
		snap.chance[scene.CharacterID] = append(snap.chance[scene.CharacterID], scene)
	}
	for _, scenes := range snap.chance {
		sort.Slice(scenes, func(i, j int) bool { return scenes[i].Pattern < scenes[j].Pattern })
	}

	for _, scene := range scenarios {
		snap.scenarios[scene.CardID] = append(snap.scenarios[scene.CardID], scene)
	}
	for _, scenes := range snap.scenarios {
		sort.Slice(scenes, func(i, j int) bool { return scenes[i].SceneOrder < scenes[j].SceneOrder })
	}

	for _, route := range routes {
		if _, ok := snap.cards[route.FromCardID]; !ok {
			return nil, fmt.Errorf("донден-маршрут %s ссылается на неизвестную карту %s: %w", route.ID, route.FromCardID, common.ErrValidation)
		}
		if _, ok := snap.cards[route.ToCardID]; !ok {
			return nil, fmt.Errorf("донден-маршрут %s ссылается на неизвестную карту %s: %w", route.ID, route.ToCardID, common.ErrValidation)
		}
		snap.dondenFrom[route.FromCardID] = append(snap.dondenFrom[route.FromCardID], route)
	}

	return snap, nil
}

func validateGlobal(g GlobalConfig) error {
	if g.LossRate < 0 || g.LossRate > 1 {
		return fmt.Errorf("loss_rate %v вне диапазона [0,1]: %w", g.LossRate, common.ErrValidation)
	}
	if g.TitleHintRate < 0 || g.TitleHintRate > 100 {
		return fmt.Errorf("title_hint_rate %d вне диапазона [0,100]: %w", g.TitleHintRate, common.ErrValidation)
	}
	return nil
}

// validateRTP отклоняет пустые и неположительные таблицы звёздности.
// Движок умеет нормализовать любую непустую таблицу, но нулевая сумма —
// всегда ошибка конфигурации, а не повод для равномерного фолбэка.
func validateRTP(cfg *RTPConfig) error {
	if len(cfg.StarSlots) == 0 {
		return fmt.Errorf("RTP персонажа %s: пустая таблица звёздности: %w", cfg.CharacterID, common.ErrValidation)
	}
	total := 0.0
	for _, slot := range cfg.StarSlots {
		if slot.Probability < 0 {
			return fmt.Errorf("RTP персонажа %s: отрицательная вероятность звезды %d: %w", cfg.CharacterID, slot.Star, common.ErrValidation)
		}
		total += slot.Probability
	}
	if total <= 0 {
		return fmt.Errorf("RTP персонажа %s: сумма весов не положительна: %w", cfg.CharacterID, common.ErrValidation)
	}
	if cfg.DondenRate < 0 || cfg.DondenRate > 100 {
		return fmt.Errorf("RTP персонажа %s: donden_rate %v вне диапазона [0,100]: %w", cfg.CharacterID, cfg.DondenRate, common.ErrValidation)
	}
	for star, rate := range cfg.ReversalRates {
		if rate < 0 || rate > 100 {
			return fmt.Errorf("RTP персонажа %s: reversal_rate для звезды %d вне диапазона: %w", cfg.CharacterID, star, common.ErrValidation)
		}
	}
	return nil
}
