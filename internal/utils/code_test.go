package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPickupCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := NewPickupCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected character %q", c)
		}
		seen[code] = true
	}
	// 200 draws from a 31^6 space should essentially never collide.
	assert.Greater(t, len(seen), 195)
}
