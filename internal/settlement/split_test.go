package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSplit(t *testing.T) {
	cases := []struct {
		name       string
		total      int64
		rate       float64
		platform   int64
		restaurant int64
	}{
		{"ten percent even", 500, 10.0, 50, 450},
		{"half cent rounds up", 999, 50.0, 500, 499},
		{"odd rate", 1099, 12.5, 137, 962},
		{"zero rate", 750, 0, 0, 750},
		{"full rate", 750, 100, 750, 0},
		{"one cent", 1, 10.0, 0, 1},
		{"zero total", 0, 10.0, 0, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ComputeSplit(c.total, c.rate)
			assert.Equal(t, c.platform, got.PlatformCents)
			assert.Equal(t, c.restaurant, got.RestaurantCents)
		})
	}
}

// The sum invariant must hold for every amount and rate, not just the
// hand-picked cases above.
func TestComputeSplitSumInvariant(t *testing.T) {
	rates := []float64{0, 3.3, 10, 12.5, 33.34, 50, 99.99, 100}
	for total := int64(0); total <= 2500; total++ {
		for _, rate := range rates {
			got := ComputeSplit(total, rate)
			assert.Equal(t, total, got.PlatformCents+got.RestaurantCents,
				"total=%d rate=%v", total, rate)
			assert.GreaterOrEqual(t, got.PlatformCents, int64(0))
			assert.GreaterOrEqual(t, got.RestaurantCents, int64(0))
		}
	}
}
