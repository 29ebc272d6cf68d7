package gacha

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinjinsansan/tensei-sub001/internal/features/catalog"
)

// seqRNG возвращает значения из фиксированной последовательности,
// по кругу.
func seqRNG(values ...float64) RNG {
	i := 0
	return func() float64 {
		v := values[i%len(values)]
		i++
		return v
	}
}

func TestDrawStar(t *testing.T) {
	slots := []catalog.StarSlot{
		{Star: 1, Probability: 50},
		{Star: 2, Probability: 30},
		{Star: 3, Probability: 20},
	}

	t.Run("cumulative selection", func(t *testing.T) {
		assert.Equal(t, 1, DrawStar(slots, seqRNG(0.0)))
		assert.Equal(t, 1, DrawStar(slots, seqRNG(0.49)))
		assert.Equal(t, 2, DrawStar(slots, seqRNG(0.51)))
		assert.Equal(t, 3, DrawStar(slots, seqRNG(0.85)))
		assert.Equal(t, 3, DrawStar(slots, seqRNG(0.999999)))
	})

	t.Run("normalizes weights that do not sum to 100", func(t *testing.T) {
		scaled := []catalog.StarSlot{
			{Star: 1, Probability: 5},
			{Star: 2, Probability: 3},
			{Star: 3, Probability: 2},
		}
		assert.Equal(t, 1, DrawStar(scaled, seqRNG(0.49)))
		assert.Equal(t, 2, DrawStar(scaled, seqRNG(0.51)))
	})

	t.Run("uniform fallback on non-positive total", func(t *testing.T) {
		zero := []catalog.StarSlot{
			{Star: 1, Probability: 0},
			{Star: 2, Probability: 0},
		}
		assert.Equal(t, 1, DrawStar(zero, seqRNG(0.2)))
		assert.Equal(t, 2, DrawStar(zero, seqRNG(0.9)))
	})

	t.Run("disabled slots never win", func(t *testing.T) {
		mixed := []catalog.StarSlot{
			{Star: 1, Probability: 0},
			{Star: 2, Probability: 100},
			{Star: 3, Probability: 0},
		}
		// Крайние броски: 0.0 не должен зацепить ведущий нулевой слот,
		// а верхний край — замыкающий
		for _, roll := range []float64{0.0, 0.5, 0.999999} {
			assert.Equal(t, 2, DrawStar(mixed, seqRNG(roll)), "roll=%v", roll)
		}
	})

	t.Run("never returns a star outside the table", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7)).Float64
		for i := 0; i < 10000; i++ {
			star := DrawStar(slots, rng)
			assert.Contains(t, []int{1, 2, 3}, star)
		}
	})

	t.Run("empty table panics", func(t *testing.T) {
		assert.Panics(t, func() {
			DrawStar(nil, seqRNG(0.5))
		})
	})
}

func TestPickByProbability(t *testing.T) {
	items := []Weighted[string]{
		{Value: "a", Weight: 60},
		{Value: "b", Weight: 40},
	}

	t.Run("cumulative selection", func(t *testing.T) {
		assert.Equal(t, "a", PickByProbability(items, seqRNG(0.3)))
		assert.Equal(t, "b", PickByProbability(items, seqRNG(0.7)))
	})

	t.Run("returns last value when roll is at the top edge", func(t *testing.T) {
		assert.Equal(t, "b", PickByProbability(items, seqRNG(0.9999999999)))
	})

	t.Run("zero total falls back to uniform", func(t *testing.T) {
		zero := []Weighted[string]{{Value: "x", Weight: 0}, {Value: "y", Weight: 0}}
		assert.Equal(t, "x", PickByProbability(zero, seqRNG(0.1)))
		assert.Equal(t, "y", PickByProbability(zero, seqRNG(0.9)))
	})

	t.Run("negative weights are ignored", func(t *testing.T) {
		mixed := []Weighted[string]{{Value: "bad", Weight: -10}, {Value: "good", Weight: 10}}
		for _, roll := range []float64{0.0, 0.5, 0.99} {
			assert.Equal(t, "good", PickByProbability(mixed, seqRNG(roll)))
		}
	})

	t.Run("trailing disabled entry loses the rounding fallback too", func(t *testing.T) {
		mixed := []Weighted[string]{
			{Value: "good", Weight: 10},
			{Value: "off", Weight: 0},
		}
		for _, roll := range []float64{0.0, 0.999999, 0.9999999999} {
			assert.Equal(t, "good", PickByProbability(mixed, seqRNG(roll)))
		}
	})

	t.Run("empty table panics", func(t *testing.T) {
		assert.Panics(t, func() {
			PickByProbability[string](nil, seqRNG(0.5))
		})
	})
}

func TestSelectByWeights(t *testing.T) {
	t.Run("offset shifts the chosen index", func(t *testing.T) {
		weights := []float64{30, 30, 20, 15, 5}
		assert.Equal(t, 1, SelectByWeights(weights, 1, seqRNG(0.0)))
		assert.Equal(t, 5, SelectByWeights(weights, 1, seqRNG(0.999)))
	})

	t.Run("empty weights return the offset", func(t *testing.T) {
		assert.Equal(t, 3, SelectByWeights(nil, 3, seqRNG(0.5)))
	})
}

func TestRollPercent(t *testing.T) {
	assert.True(t, RollPercent(100, seqRNG(0.999)))
	assert.False(t, RollPercent(0, seqRNG(0.0)))
	assert.True(t, RollPercent(60, seqRNG(0.59)))
	assert.False(t, RollPercent(60, seqRNG(0.61)))
}

func TestPickDonden(t *testing.T) {
	routes := []catalog.DondenRoute{
		{ID: "r1", FromCardID: "c1", ToCardID: "c2", Steps: 2},
		{ID: "r2", FromCardID: "c1", ToCardID: "c3", Steps: 3},
	}

	t.Run("no routes means no twist", func(t *testing.T) {
		assert.Nil(t, PickDonden(nil, 100, seqRNG(0.0)))
	})

	t.Run("failed roll means no twist", func(t *testing.T) {
		assert.Nil(t, PickDonden(routes, 30, seqRNG(0.9)))
	})

	t.Run("successful roll picks a route", func(t *testing.T) {
		route := PickDonden(routes, 100, seqRNG(0.5, 0.1))
		require.NotNil(t, route)
		assert.Equal(t, "c1", route.FromCardID)
	})
}
