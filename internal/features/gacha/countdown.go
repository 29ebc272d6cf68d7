// Package gacha — countdown.go: презентационные оси случайности.
// Цвет ожидания и грейд каунтдауна не влияют на выигрыш, только на
// интенсивность показа перед раскрытием карты.
package gacha

import (
	"github.com/jinjinsansan/tensei-sub001/internal/features/catalog"
)

// StandbyColor — цвет экрана ожидания перед каунтдауном.
type StandbyColor string

const (
	StandbyBlack   StandbyColor = "black"
	StandbyWhite   StandbyColor = "white"
	StandbyYellow  StandbyColor = "yellow"
	StandbyBlue    StandbyColor = "blue"
	StandbyRed     StandbyColor = "red"
	StandbyRainbow StandbyColor = "rainbow"
)

// Grade — грейд каунтдауна, от E1 (слабый) до E5 (максимальный).
type Grade string

const (
	GradeE1 Grade = "E1"
	GradeE2 Grade = "E2"
	GradeE3 Grade = "E3"
	GradeE4 Grade = "E4"
	GradeE5 Grade = "E5"
)

// CountdownStep — один кадр каунтдауна: число и цвет.
type CountdownStep struct {
	Number int    `json:"number"`
	Color  string `json:"color"`
}

// CountdownPattern — именованный четырёхшаговый паттерн каунтдауна.
type CountdownPattern struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Steps [4]CountdownStep `json:"steps"`
}

// CountdownSelection — выбранные грейд и паттерн.
type CountdownSelection struct {
	Grade   Grade            `json:"grade"`
	Pattern CountdownPattern `json:"pattern"`
}

// standbyWeights — веса цветов ожидания по редкости.
// Чем выше редкость, тем чаще «горячие» цвета.
var standbyWeights = map[catalog.Rarity][]Weighted[StandbyColor]{
	catalog.RarityN:   {{StandbyBlack, 45}, {StandbyWhite, 25}, {StandbyYellow, 15}, {StandbyBlue, 10}, {StandbyRed, 4}, {StandbyRainbow, 1}},
	catalog.RarityR:   {{StandbyBlack, 20}, {StandbyWhite, 30}, {StandbyYellow, 25}, {StandbyBlue, 15}, {StandbyRed, 8}, {StandbyRainbow, 2}},
	catalog.RaritySR:  {{StandbyBlack, 10}, {StandbyWhite, 15}, {StandbyYellow, 30}, {StandbyBlue, 25}, {StandbyRed, 15}, {StandbyRainbow, 5}},
	catalog.RaritySSR: {{StandbyBlack, 5}, {StandbyWhite, 10}, {StandbyYellow, 15}, {StandbyBlue, 30}, {StandbyRed, 30}, {StandbyRainbow, 10}},
	catalog.RarityUR:  {{StandbyBlack, 3}, {StandbyWhite, 5}, {StandbyYellow, 10}, {StandbyBlue, 20}, {StandbyRed, 40}, {StandbyRainbow, 22}},
	catalog.RarityLR:  {{StandbyBlack, 2}, {StandbyWhite, 3}, {StandbyYellow, 5}, {StandbyBlue, 10}, {StandbyRed, 35}, {StandbyRainbow, 45}},
}

// gradeWeights — веса грейдов каунтдауна по редкости.
var gradeWeights = map[catalog.Rarity][]Weighted[Grade]{
	catalog.RarityN:   {{GradeE1, 55}, {GradeE2, 25}, {GradeE3, 12}, {GradeE4, 6}, {GradeE5, 2}},
	catalog.RarityR:   {{GradeE1, 30}, {GradeE2, 40}, {GradeE3, 20}, {GradeE4, 8}, {GradeE5, 2}},
	catalog.RaritySR:  {{GradeE1, 15}, {GradeE2, 25}, {GradeE3, 35}, {GradeE4, 20}, {GradeE5, 5}},
	catalog.RaritySSR: {{GradeE1, 8}, {GradeE2, 15}, {GradeE3, 25}, {GradeE4, 40}, {GradeE5, 12}},
	catalog.RarityUR:  {{GradeE1, 5}, {GradeE2, 10}, {GradeE3, 15}, {GradeE4, 45}, {GradeE5, 25}},
	catalog.RarityLR:  {{GradeE1, 3}, {GradeE2, 7}, {GradeE3, 10}, {GradeE4, 35}, {GradeE5, 45}},
}

func pattern(id, name string, steps [4]CountdownStep) CountdownPattern {
	return CountdownPattern{ID: id, Name: name, Steps: steps}
}

func step(number int, color string) CountdownStep {
	return CountdownStep{Number: number, Color: color}
}

// countdownPatterns — паттерны каунтдауна по грейдам.
// Цвет кадра повышается с грейдом: green → blue → red → rainbow.
var countdownPatterns = map[Grade][]CountdownPattern{
	GradeE1: {
		pattern("E1-1", "low", [4]CountdownStep{step(4, "green"), step(3, "green"), step(2, "green"), step(1, "green")}),
		pattern("E1-2", "standard", [4]CountdownStep{step(5, "green"), step(4, "green"), step(3, "green"), step(2, "green")}),
		pattern("E1-3", "slightly-high", [4]CountdownStep{step(6, "green"), step(5, "green"), step(4, "green"), step(3, "green")}),
		pattern("E1-4", "high-green", [4]CountdownStep{step(7, "green"), step(6, "green"), step(5, "green"), step(4, "green")}),
		pattern("E1-5", "top-green", [4]CountdownStep{step(8, "green"), step(7, "green"), step(6, "green"), step(5, "green")}),
		pattern("E1-6", "skip", [4]CountdownStep{step(6, "green"), step(4, "green"), step(2, "green"), step(1, "green")}),
	},
	GradeE2: {
		pattern("E2-1", "last-blue", [4]CountdownStep{step(5, "green"), step(4, "green"), step(3, "green"), step(2, "blue")}),
		pattern("E2-2", "late-blue", [4]CountdownStep{step(4, "green"), step(3, "green"), step(2, "blue"), step(1, "blue")}),
		pattern("E2-3", "late-bloom", [4]CountdownStep{step(6, "green"), step(5, "green"), step(4, "green"), step(3, "blue")}),
		pattern("E2-4", "early-blue", [4]CountdownStep{step(7, "green"), step(6, "blue"), step(5, "blue"), step(4, "blue")}),
		pattern("E2-5", "high-late-bloom", [4]CountdownStep{step(8, "green"), step(7, "green"), step(6, "green"), step(5, "blue")}),
		pattern("E2-6", "single-blue", [4]CountdownStep{step(5, "green"), step(4, "green"), step(3, "blue"), step(2, "green")}),
	},
	GradeE3: {
		pattern("E3-1", "standard-blue", [4]CountdownStep{step(6, "blue"), step(5, "blue"), step(4, "blue"), step(3, "blue")}),
		pattern("E3-2", "low-blue", [4]CountdownStep{step(4, "blue"), step(3, "blue"), step(2, "blue"), step(1, "blue")}),
		pattern("E3-3", "high-blue", [4]CountdownStep{step(8, "blue"), step(7, "blue"), step(6, "blue"), step(5, "blue")}),
		pattern("E3-4", "upper-blue", [4]CountdownStep{step(7, "blue"), step(6, "blue"), step(5, "blue"), step(4, "blue")}),
		pattern("E3-5", "fake-blue", [4]CountdownStep{step(6, "blue"), step(5, "blue"), step(4, "green"), step(3, "blue")}),
		pattern("E3-6", "skip-blue", [4]CountdownStep{step(8, "blue"), step(6, "blue"), step(4, "blue"), step(2, "blue")}),
	},
	GradeE4: {
		pattern("E4-1", "last-red", [4]CountdownStep{step(7, "blue"), step(6, "blue"), step(5, "blue"), step(4, "red")}),
		pattern("E4-2", "late-red", [4]CountdownStep{step(7, "blue"), step(6, "blue"), step(5, "red"), step(4, "red")}),
		pattern("E4-3", "all-red", [4]CountdownStep{step(8, "red"), step(7, "red"), step(6, "red"), step(5, "red")}),
		pattern("E4-4", "low-all-red", [4]CountdownStep{step(5, "red"), step(4, "red"), step(3, "red"), step(2, "red")}),
		pattern("E4-5", "double-upgrade", [4]CountdownStep{step(6, "green"), step(5, "blue"), step(4, "blue"), step(3, "red")}),
		pattern("E4-6", "triple-upgrade", [4]CountdownStep{step(5, "green"), step(4, "blue"), step(3, "red"), step(2, "red")}),
	},
	GradeE5: {
		pattern("E5-1", "red-to-rainbow", [4]CountdownStep{step(8, "red"), step(7, "red"), step(6, "red"), step(5, "rainbow")}),
		pattern("E5-2", "blue-red-rainbow", [4]CountdownStep{step(8, "blue"), step(7, "blue"), step(6, "red"), step(5, "rainbow")}),
		pattern("E5-3", "low-red-rainbow", [4]CountdownStep{step(5, "red"), step(4, "red"), step(3, "red"), step(2, "rainbow")}),
		pattern("E5-4", "full-upgrade-rainbow", [4]CountdownStep{step(6, "green"), step(5, "blue"), step(4, "red"), step(3, "rainbow")}),
		pattern("E5-5", "miracle-rainbow", [4]CountdownStep{step(4, "green"), step(3, "green"), step(2, "red"), step(1, "rainbow")}),
		pattern("E5-6", "long-red-rainbow", [4]CountdownStep{step(7, "red"), step(6, "red"), step(5, "red"), step(4, "rainbow")}),
	},
}

// ChooseStandbyColor выбирает цвет ожидания для редкости.
func ChooseStandbyColor(rarity catalog.Rarity, rng RNG) StandbyColor {
	weights, ok := standbyWeights[rarity]
	if !ok {
		weights = standbyWeights[catalog.RarityN]
	}
	return PickByProbability(weights, rng)
}

// ChooseCountdown выбирает грейд по редкости и случайный паттерн грейда.
func ChooseCountdown(rarity catalog.Rarity, rng RNG) CountdownSelection {
	weights, ok := gradeWeights[rarity]
	if !ok {
		weights = gradeWeights[catalog.RarityN]
	}
	grade := PickByProbability(weights, rng)
	patterns := countdownPatterns[grade]
	idx := int(rng() * float64(len(patterns)))
	if idx >= len(patterns) {
		idx = len(patterns) - 1
	}
	return CountdownSelection{Grade: grade, Pattern: patterns[idx]}
}

// Веса звёздности для подсказки: у настоящей подсказки распределение
// смещено к реальной звёздности высоких карт, у приманки — к низким.
var (
	titleHintRealWeights = []float64{5, 10, 15, 35, 35}
	titleHintFakeWeights = []float64{30, 30, 20, 15, 5}
)
