package handler // handler defines http handlers

import (
	"errors"  // errors provides sentinel values used in getUserID
	"strconv" // strconv converts strings to numeric types
	"time"    // time validates calendar dates

	"github.com/labstack/echo/v4" // echo defines request context types
)

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID parses a positive uint64 path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// validDate reports whether s is a well-formed YYYY-MM-DD calendar date.
func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// validClock accepts wall-clock strings like "17:30".
func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}
