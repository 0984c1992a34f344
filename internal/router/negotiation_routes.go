package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/marketplace-negotiation/internal/handler"
    "github.com/iliyamo/marketplace-negotiation/internal/middleware"
)

// RegisterNegotiations registers the negotiation API under /v1.  Every route
// requires a valid JWT with the CLIENT or PROVIDER role and goes through the
// rate limiter; opening a negotiation is reserved to clients.  Whether the
// actor may act on a given negotiation is decided by the engine.
func RegisterNegotiations(e *echo.Echo, h *handler.NegotiationHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
    g := e.Group(
        "/v1",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(middleware.RoleClient, middleware.RoleProvider),
    )
    if limiter != nil {
        g.Use(limiter)
    }

    g.POST("/negotiations", h.Create, middleware.RequireRole(middleware.RoleClient))
    g.GET("/negotiations", h.List)
    g.GET("/negotiations/:id", h.Get)
    g.GET("/negotiations/:id/history", h.History)
    g.GET("/negotiations/:id/actions", h.Actions)

    g.POST("/negotiations/:id/counter", h.Counter)
    g.POST("/negotiations/:id/accept", h.Accept)
    g.POST("/negotiations/:id/reject", h.Reject)
    g.POST("/negotiations/:id/cancel", h.Cancel)
    g.POST("/negotiations/:id/complete", h.Complete)

    g.POST("/negotiations/:id/messages", h.PostMessage)
    g.GET("/negotiations/:id/messages", h.ListMessages)
}
