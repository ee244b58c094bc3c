package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newTestContext() echo.Context {
	e := echo.New()
	req := httptest.NewRequest("GET", "/", nil)
	return e.NewContext(req, httptest.NewRecorder())
}

// userID must read the "user_id" value JWTAuth stores, so cache entries of
// authenticated responses are scoped per user instead of all sharing the
// guest slot.
func TestUserIDReadsAuthenticatedSubject(t *testing.T) {
	c := newTestContext()
	assert.Equal(t, "guest", userID(c))

	c.Set("user_id", "42")
	assert.Equal(t, "42", userID(c))
}

// Claim values arrive untyped from the JWT library; JSON numbers decode as
// float64 and must still produce a stable key.
func TestUserIDHandlesNumericClaim(t *testing.T) {
	c := newTestContext()
	c.Set("user_id", float64(7))
	assert.Equal(t, "7", userID(c))
}
