package handler

import (
    "errors"
    "net/http"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

// errorKind maps an engine error kind to its response code and status.
type errorKind struct {
    err    error
    code   string
    status int
}

// errorKinds is checked in order; the first match wins.
var errorKinds = []errorKind{
    {negotiation.ErrInvalidAmount, "invalid_amount", http.StatusUnprocessableEntity},
    {negotiation.ErrInvalidCurrency, "invalid_currency", http.StatusUnprocessableEntity},
    {negotiation.ErrCurrencyMismatch, "currency_mismatch", http.StatusUnprocessableEntity},
    {negotiation.ErrInvalidInput, "invalid_input", http.StatusUnprocessableEntity},
    {negotiation.ErrContentTooLong, "content_too_long", http.StatusUnprocessableEntity},
    {negotiation.ErrInvalidParticipant, "invalid_participant", http.StatusUnprocessableEntity},
    {negotiation.ErrInvalidActor, "invalid_actor", http.StatusForbidden},
    {negotiation.ErrForbidden, "forbidden", http.StatusForbidden},
    {negotiation.ErrInvalidTransition, "invalid_transition", http.StatusConflict},
    {negotiation.ErrDuplicateOpenNegotiation, "duplicate_open_negotiation", http.StatusConflict},
    {negotiation.ErrStaleNegotiation, "stale_negotiation", http.StatusConflict},
    {negotiation.ErrNotFound, "not_found", http.StatusNotFound},
    {negotiation.ErrStoreUnavailable, "store_unavailable", http.StatusServiceUnavailable},
}

// respondError writes the JSON error body for err.  Store failures and
// unknown errors do not leak their text to the caller.
func respondError(c echo.Context, err error) error {
    var verrs validator.ValidationErrors
    if errors.As(err, &verrs) {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid_input", "message": verrs.Error()})
    }
    for _, k := range errorKinds {
        if errors.Is(err, k.err) {
            msg := err.Error()
            if k.status == http.StatusServiceUnavailable {
                msg = "storage is temporarily unavailable"
            }
            return c.JSON(k.status, echo.Map{"error": k.code, "message": msg})
        }
    }
    c.Logger().Errorf("unhandled error: %v", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}
