package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"                          // import the Echo web framework to handle routing
    echomw "github.com/labstack/echo/v4/middleware"        // request ids and panic recovery

    "github.com/iliyamo/marketplace-negotiation/internal/handler"
    "github.com/iliyamo/marketplace-negotiation/internal/logger"
    "github.com/iliyamo/marketplace-negotiation/internal/middleware"
)

// New returns an Echo instance with the shared middleware and validator
// installed and the unauthenticated routes registered.
func New(log *logger.Logger) *echo.Echo {
    e := echo.New()
    e.HideBanner = true
    e.HidePort = true
    e.Validator = handler.NewRequestValidator()
    e.Use(echomw.Recover())
    e.Use(echomw.RequestID())
    e.Use(middleware.RequestLogger(log))
    RegisterRoutes(e)
    return e
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check for load balancers.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}
