package middleware

import (
    "context"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/marketplace-negotiation/internal/logger"
)

// RequestLogger stores the request id (as set by echo's RequestID middleware)
// on the request context and logs every served request.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            req := c.Request()
            if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
                c.SetRequest(req.WithContext(context.WithValue(req.Context(), logger.RequestIDKey, id)))
            }
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            log.WithContext(c.Request().Context()).HTTPRequest(
                req.Method,
                c.Path(),
                c.Response().Status,
                float64(time.Since(start).Microseconds())/1000,
                c.RealIP(),
            )
            return nil
        }
    }
}
