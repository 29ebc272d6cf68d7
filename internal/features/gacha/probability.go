// Package gacha реализует движок круток: вероятности, сборку результата
// и оркестрацию сессии.
// probability.go — чистые функции выбора по весам. Никакого I/O:
// вся случайность приходит через инжектируемый RNG, поэтому в тестах
// движок полностью детерминирован.
package gacha

import (
	"github.com/jinjinsansan/tensei-sub001/internal/features/catalog"
)

// RNG — источник случайности, возвращает число в [0,1).
// В продакшене это rand.Float64, в тестах — фиксированная последовательность.
type RNG func() float64

// DrawStar выбирает звёздность по таблице слотов кумулятивным методом.
// Веса нормализуются на месте; если сумма не положительна, распределение
// считается равномерным. Пустая таблица — ошибка программирования:
// валидация каталога обязана отсечь её раньше, поэтому здесь паника.
func DrawStar(slots []catalog.StarSlot, rng RNG) int {
	if len(slots) == 0 {
		panic("gacha: пустая таблица звёздности")
	}

	total := 0.0
	for _, slot := range slots {
		if slot.Probability > 0 {
			total += slot.Probability
		}
	}

	roll := rng()
	cumulative := 0.0
	if total <= 0 {
		// Равномерный фолбэк
		uniform := 1.0 / float64(len(slots))
		for _, slot := range slots {
			cumulative += uniform
			if roll <= cumulative {
				return slot.Star
			}
		}
		return slots[len(slots)-1].Star
	}

	last := slots[len(slots)-1].Star
	for _, slot := range slots {
		// Слоты с неположительным весом выключены и выиграть не могут,
		// даже при броске ровно 0.0
		if slot.Probability <= 0 {
			continue
		}
		last = slot.Star
		cumulative += slot.Probability / total
		if roll <= cumulative {
			return slot.Star
		}
	}
	// Из-за накопления ошибки округления сумма может чуть не дотянуть до 1
	return last
}

// Weighted — элемент с весом для кумулятивного выбора.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// PickByProbability выбирает один элемент по весам. Один и тот же примитив
// обслуживает флаг разворота, цвет ожидания, грейд каунтдауна и донден:
// веса не обязаны суммироваться к 100, нулевая сумма означает равномерный
// выбор. Пустой срез — ошибка программирования.
func PickByProbability[T any](items []Weighted[T], rng RNG) T {
	if len(items) == 0 {
		panic("gacha: пустая таблица весов")
	}

	total := 0.0
	for _, item := range items {
		if item.Weight > 0 {
			total += item.Weight
		}
	}

	roll := rng()
	if total <= 0 {
		idx := int(roll * float64(len(items)))
		if idx >= len(items) {
			idx = len(items) - 1
		}
		return items[idx].Value
	}

	cumulative := 0.0
	last := items[len(items)-1].Value
	for _, item := range items {
		if item.Weight <= 0 {
			continue
		}
		last = item.Value
		cumulative += item.Weight / total
		if roll <= cumulative {
			return item.Value
		}
	}
	return last
}

// SelectByWeights выбирает индекс по срезу весов со сдвигом offset.
// Используется для подсказки звёздности и выбора карты-приманки.
func SelectByWeights(weights []float64, offset int, rng RNG) int {
	if len(weights) == 0 {
		return offset
	}
	items := make([]Weighted[int], len(weights))
	for i, w := range weights {
		items[i] = Weighted[int]{Value: offset + i, Weight: w}
	}
	return PickByProbability(items, rng)
}

// RollPercent бросает процентный шанс rate из диапазона [0,100].
func RollPercent(rate float64, rng RNG) bool {
	return rng()*100 < rate
}

// PickDonden решает, подменять ли выпавшую карту по донден-маршруту.
// Маршруты — разреженный граф: карта без исходящих маршрутов не может
// быть подменена, и это нормальный негативный случай, а не ошибка.
// Возвращает выбранный маршрут или nil.
func PickDonden(routes []catalog.DondenRoute, dondenRate float64, rng RNG) *catalog.DondenRoute {
	if len(routes) == 0 {
		return nil
	}
	if !RollPercent(dondenRate, rng) {
		return nil
	}
	items := make([]Weighted[int], len(routes))
	for i := range routes {
		// Маршруты равновероятны; вес в конфиге пока не задаётся
		items[i] = Weighted[int]{Value: i, Weight: 1}
	}
	idx := PickByProbability(items, rng)
	return &routes[idx]
}
