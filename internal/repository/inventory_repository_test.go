package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lastcrumb/surplusbag/internal/model"
)

func TestEffectiveQuantity(t *testing.T) {
	active := &model.BagConfig{DailyQuantity: 5, IsActive: true}
	inactive := &model.BagConfig{DailyQuantity: 5, IsActive: false}
	three := uint32(3)

	assert.Zero(t, EffectiveQuantity(nil, nil))
	assert.Zero(t, EffectiveQuantity(inactive, nil))
	assert.Equal(t, uint32(5), EffectiveQuantity(active, nil))
	assert.Equal(t, uint32(3), EffectiveQuantity(active, &model.DailyOverride{Quantity: &three}))
	assert.Zero(t, EffectiveQuantity(active, &model.DailyOverride{Quantity: &three, IsSuspended: true}))
	// Override touching only the pickup window keeps the default quantity.
	assert.Equal(t, uint32(5), EffectiveQuantity(active, &model.DailyOverride{}))
}
