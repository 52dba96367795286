package middleware

// identity.go holds the helpers that turn JWT claims into the opaque holder
// identity the reservation core works with.

import (
    "strconv"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// holderKey is the echo context key JWTAuth stores the caller identity under.
const holderKey = "user_id"

// HolderID returns the authenticated caller identity, or "" when the request
// carries none.
func HolderID(c echo.Context) string {
    if v, ok := c.Get(holderKey).(string); ok {
        return v
    }
    return ""
}

// subject extracts the sub claim, falling back to user_id.  Numeric IDs are
// formatted without a fractional part.
func subject(cl jwt.MapClaims) string {
    for _, key := range []string{"sub", "user_id"} {
        switch v := cl[key].(type) {
        case string:
            if v != "" {
                return v
            }
        case float64:
            return strconv.FormatFloat(v, 'f', -1, 64)
        }
    }
    return ""
}
