// Package gacha — composer.go собирает из снимка каталога и RNG один
// неизменяемый результат крутки и сценарий показа. Побочных эффектов
// нет: при одинаковой последовательности RNG и одном снимке каталога
// выход побайтово совпадает.
package gacha

import (
	"fmt"

	"github.com/jinjinsansan/tensei-sub001/internal/common"
	"github.com/jinjinsansan/tensei-sub001/internal/features/catalog"
)

// ComposeOptions — параметры сборки одной крутки.
type ComposeOptions struct {
	// ForcedCharacterID пропускает взвешенный выбор персонажа
	// (режимы с одним персонажем).
	ForcedCharacterID string
}

// Compose выполняет полный цикл: проигрыш → персонаж → звёздность →
// карта → донден → разворот → презентационные оси → сценарий.
func Compose(snap *catalog.Snapshot, rng RNG, opts ComposeOptions) (DrawResult, StoryPayload, error) {
	global := snap.Global()

	// Проигрыш решается до выбора персонажа
	if rng() < global.LossRate {
		return composeLoss(snap)
	}

	character, err := pickCharacter(snap, rng, opts.ForcedCharacterID)
	if err != nil {
		return DrawResult{}, StoryPayload{}, err
	}

	rtp, err := snap.RTP(character.ID)
	if err != nil {
		return DrawResult{}, StoryPayload{}, err
	}
	star := DrawStar(rtp.StarSlots, rng)

	card, err := pickCard(snap, character.ID, star, rng)
	if err != nil {
		return DrawResult{}, StoryPayload{}, err
	}

	// Донден: выпавшая карта — отправная точка маршрута; при срабатывании
	// игроку выдаётся карта назначения, а исходная остаётся в результате
	// как dondenFromCardId для сборки сценария подмены.
	var (
		dondenFromID string
		dondenSteps  int
	)
	if route := PickDonden(snap.DondenRoutesFrom(card.ID), rtp.DondenRate, rng); route != nil {
		target, err := snap.CardByID(route.ToCardID)
		if err != nil {
			return DrawResult{}, StoryPayload{}, err
		}
		dondenFromID = card.ID
		dondenSteps = route.Steps
		card = target
		star = card.StarLevel
	}

	isReversal := RollPercent(rtp.ReversalRates[star], rng)

	result := DrawResult{
		CharacterID:      character.ID,
		CardID:           card.ID,
		Rarity:           card.Rarity,
		StarRating:       card.StarLevel,
		CardName:         card.Name,
		CardTitle:        card.Title,
		CardImageURL:     card.ImageURL,
		IsReversal:       isReversal,
		IsDonden:         dondenFromID != "",
		DondenFromCardID: dondenFromID,
		DondenSteps:      dondenSteps,
	}

	story, err := buildStory(snap, rng, result, global.TitleHintRate)
	if err != nil {
		return DrawResult{}, StoryPayload{}, err
	}
	return result, story, nil
}

// composeLoss собирает проигрышную крутку: LOSS-карта без сценария.
func composeLoss(snap *catalog.Snapshot) (DrawResult, StoryPayload, error) {
	for _, character := range snap.ActiveCharacters() {
		lossCard := snap.LossCard(character.ID)
		if lossCard == nil {
			continue
		}
		result := DrawResult{
			IsLoss:       true,
			CharacterID:  character.ID,
			CardID:       lossCard.ID,
			Rarity:       lossCard.Rarity,
			StarRating:   0,
			CardName:     lossCard.Name,
			CardTitle:    lossCard.Title,
			CardImageURL: lossCard.ImageURL,
		}
		story := StoryPayload{
			StarLevel:   0,
			CharacterID: character.ID,
			CardID:      lossCard.ID,
		}
		return result, story, nil
	}
	return DrawResult{}, StoryPayload{}, fmt.Errorf("LOSS-карта не настроена ни у одного персонажа: %w", common.ErrNotFoundCardOrUser)
}

func pickCharacter(snap *catalog.Snapshot, rng RNG, forcedID string) (*catalog.Character, error) {
	if forcedID != "" {
		return snap.CharacterByID(forcedID)
	}
	active := snap.ActiveCharacters()
	if len(active) == 0 {
		return nil, fmt.Errorf("нет активных персонажей: %w", common.ErrValidation)
	}
	items := make([]Weighted[int], len(active))
	for i, c := range active {
		items[i] = Weighted[int]{Value: i, Weight: float64(c.Weight)}
	}
	idx := PickByProbability(items, rng)
	return &active[idx], nil
}

// pickCard выбирает карту желаемой звёздности; если подходящих нет
// (тираж исчерпан), выбор расширяется на весь доступный пул персонажа.
func pickCard(snap *catalog.Snapshot, characterID string, star int, rng RNG) (*catalog.Card, error) {
	playable := snap.PlayableCards(characterID)
	if len(playable) == 0 {
		return nil, fmt.Errorf("у персонажа %s нет доступных карт: %w", characterID, common.ErrNotFoundCardOrUser)
	}
	matched := make([]*catalog.Card, 0, len(playable))
	for _, card := range playable {
		if card.StarLevel == star {
			matched = append(matched, card)
		}
	}
	pool := matched
	if len(pool) == 0 {
		pool = playable
	}
	idx := int(rng() * float64(len(pool)))
	if idx >= len(pool) {
		idx = len(pool) - 1
	}
	return pool[idx], nil
}

// buildStory собирает сценарий показа: ожидание, каунтдаун, подсказка,
// пре-история, chance, основная история и разворот.
func buildStory(snap *catalog.Snapshot, rng RNG, result DrawResult, hintRate int) (StoryPayload, error) {
	story := StoryPayload{
		StarLevel:    result.StarRating,
		HadReversal:  result.IsReversal,
		CharacterID:  result.CharacterID,
		CardID:       result.CardID,
		StandbyColor: ChooseStandbyColor(result.Rarity, rng),
		Countdown:    ChooseCountdown(result.Rarity, rng),
	}

	story.TitleHint = chooseTitleHint(snap, rng, result, hintRate)

	// Пре-история: один случайный паттерн персонажа
	if patterns := snap.PreStoryPatterns(result.CharacterID); len(patterns) > 0 {
		idx := int(rng() * float64(len(patterns)))
		if idx >= len(patterns) {
			idx = len(patterns) - 1
		}
		for _, scene := range patterns[idx] {
			story.PreStory = append(story.PreStory, VideoSegment{
				ID:              scene.ID,
				Phase:           catalog.PhasePreStory,
				Order:           scene.SceneOrder,
				VideoURL:        scene.VideoURL,
				DurationSeconds: scene.DurationSeconds,
			})
		}
	}

	// Chance: один случайный ролик
	if scenes := snap.ChanceScenes(result.CharacterID); len(scenes) > 0 {
		idx := int(rng() * float64(len(scenes)))
		if idx >= len(scenes) {
			idx = len(scenes) - 1
		}
		scene := scenes[idx]
		story.Chance = append(story.Chance, VideoSegment{
			ID:              scene.ID,
			Phase:           catalog.PhaseChance,
			Order:           1,
			VideoURL:        scene.VideoURL,
			DurationSeconds: scene.DurationSeconds,
		})
	}

	for _, scene := range snap.Scenarios(result.CardID) {
		seg := VideoSegment{
			ID:              scene.ID,
			Phase:           scene.Phase,
			Order:           scene.SceneOrder,
			VideoURL:        scene.VideoURL,
			DurationSeconds: scene.DurationSeconds,
			TelopText:       scene.TelopText,
			TelopType:       scene.TelopType,
		}
		switch scene.Phase {
		case catalog.PhaseMainStory:
			story.MainStory = append(story.MainStory, seg)
		case catalog.PhaseReversal:
			if result.IsReversal {
				story.ReversalStory = append(story.ReversalStory, seg)
			}
		}
	}

	return story, nil
}

// chooseTitleHint выбирает карту для подсказки звёздности.
// С вероятностью hintRate подсказка показывает настоящую карту,
// иначе — случайную приманку из пула персонажа.
func chooseTitleHint(snap *catalog.Snapshot, rng RNG, result DrawResult, hintRate int) TitleHint {
	useReal := RollPercent(float64(hintRate), rng)

	others := make([]*catalog.Card, 0)
	for _, card := range snap.PlayableCards(result.CharacterID) {
		if card.ID != result.CardID {
			others = append(others, card)
		}
	}

	hintCardID := result.CardID
	isReal := true
	if !useReal && len(others) > 0 {
		idx := int(rng() * float64(len(others)))
		if idx >= len(others) {
			idx = len(others) - 1
		}
		hintCardID = others[idx].ID
		isReal = false
	}

	weights := titleHintFakeWeights
	if isReal {
		weights = titleHintRealWeights
	}
	return TitleHint{
		Enabled:     true,
		VideoCardID: hintCardID,
		StarDisplay: SelectByWeights(weights, 1, rng),
		IsRealCard:  isReal,
	}
}
