package middleware

// identity.go holds the accessors for the identity JWTAuth stores on the
// echo context.  The engine only ever sees the opaque actor id.

import (
    "github.com/labstack/echo/v4"
)

// Roles carried in the token's role claim.
const (
    RoleClient   = "CLIENT"
    RoleProvider = "PROVIDER"
)

// ActorID returns the authenticated actor id, or false when the request did
// not pass through JWTAuth.
func ActorID(c echo.Context) (string, bool) {
    v, ok := c.Get(ActorIDKey).(string)
    return v, ok && v != ""
}

// Role returns the authenticated role, or "" when absent.
func Role(c echo.Context) string {
    v, _ := c.Get(RoleKey).(string)
    return v
}

// rateSubject identifies the caller for rate limiting.  It returns "guest"
// when no actor is authenticated.
func rateSubject(c echo.Context) string {
    if id, ok := ActorID(c); ok {
        return id
    }
    return "guest"
}
