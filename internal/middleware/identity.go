package middleware

// identity.go defines helper functions shared across middleware files.
// Currently it provides a userID extraction function reading the "user_id"
// value that JWTAuth stores in the Echo context. When no token is present
// or the value is missing, "guest" is returned.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userID extracts a user identifier from the context. JWTAuth stores the
// token's subject claim under "user_id" without asserting its type, so
// both string and numeric claim values are handled here. It returns
// "guest" when no user is authenticated.
func userID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return "guest"
}
