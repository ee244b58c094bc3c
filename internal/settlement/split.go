// Package settlement computes the commission split for captured
// reservations and moves restaurant proceeds to connected payout accounts.
package settlement

import "math"

// Split is the cent-exact division of one captured total.
type Split struct {
	PlatformCents   int64
	RestaurantCents int64
}

// ComputeSplit divides totalCents by the commission rate (percent).  The
// platform share is rounded half away from zero to the nearest cent; the
// restaurant share is the remainder, never rounded independently, so
// PlatformCents + RestaurantCents == totalCents holds exactly for any rate
// in [0,100].
func ComputeSplit(totalCents int64, ratePercent float64) Split {
	platform := int64(math.Round(float64(totalCents) * ratePercent / 100))
	return Split{
		PlatformCents:   platform,
		RestaurantCents: totalCents - platform,
	}
}
