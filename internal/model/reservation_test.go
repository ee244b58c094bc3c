package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAccepted, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusExpired, true},
		{StatusPending, StatusCompleted, false},
		{StatusAccepted, StatusCompleted, true},
		// Compensation edge, only taken when a capture fails.
		{StatusAccepted, StatusPending, true},
		{StatusAccepted, StatusCancelled, false},
		{StatusAccepted, StatusExpired, false},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusAccepted, false},
		{StatusExpired, StatusAccepted, false},
		{StatusExpired, StatusPending, false},
		{Status("BOGUS"), StatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusAccepted.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
}

func TestCodeMatches(t *testing.T) {
	r := &Reservation{PickupCode: "KX7R2M"}
	assert.True(t, r.CodeMatches("KX7R2M"))
	assert.True(t, r.CodeMatches("kx7r2m"))
	assert.True(t, r.CodeMatches("  kx7r2m "))
	assert.False(t, r.CodeMatches("KX7R2N"))
	assert.False(t, r.CodeMatches(""))
}
