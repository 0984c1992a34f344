package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/marketplace-negotiation/internal/middleware"
)

type postMessageRequest struct {
    RecipientID string `json:"recipient_id" validate:"required,max=64"`
    Content     string `json:"content" validate:"required"`
}

// PostMessage handles POST /v1/negotiations/:id/messages.  The sender is the
// authenticated actor.  Length limits are enforced by the engine.
func (h *NegotiationHandler) PostMessage(c echo.Context) error {
    actorID, ok := middleware.ActorID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body postMessageRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := c.Validate(&body); err != nil {
        return respondError(c, err)
    }
    msg, err := h.Engine.PostMessage(c.Request().Context(), c.Param("id"), actorID, body.RecipientID, body.Content)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, msg)
}

// ListMessages handles GET /v1/negotiations/:id/messages, oldest first.
func (h *NegotiationHandler) ListMessages(c echo.Context) error {
    actorID, ok := middleware.ActorID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    msgs, err := h.Engine.ListMessages(c.Request().Context(), c.Param("id"), actorID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}
