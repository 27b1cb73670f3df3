package api

import (
	"strconv"

	echo "github.com/labstack/echo/v5"
)

// defaultLimit and maxLimit bound every paginated list endpoint (spec
// §6/§8: default 50, clamped to [1, 200]).
const (
	defaultLimit = 50
	maxLimit     = 200
)

// clampLimit applies spec §8's boundary rule: limit requests are
// clamped to [1, 200], defaulting to 50 when unset or non-positive.
func clampLimit(requested int) int {
	if requested <= 0 {
		return defaultLimit
	}
	if requested > maxLimit {
		return maxLimit
	}
	return requested
}

// queryInt parses name as an int query parameter, returning def if
// absent or malformed.
func queryInt(c *echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// queryFloat parses name as a float64 query parameter, returning def
// if absent or malformed.
func queryFloat(c *echo.Context, name string, def float64) float64 {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// queryIntPtr parses name as an int64 query parameter, returning nil
// if absent or malformed.
func queryIntPtr(c *echo.Context, name string) *int64 {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// queryStringPtr returns a pointer to the name query parameter, or nil
// if absent.
func queryStringPtr(c *echo.Context, name string) *string {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	return &raw
}

// queryBool parses name as a bool query parameter, returning def if
// absent or malformed.
func queryBool(c *echo.Context, name string, def bool) bool {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}
