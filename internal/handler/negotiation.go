package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/marketplace-negotiation/internal/middleware"
    "github.com/iliyamo/marketplace-negotiation/internal/model"
    "github.com/iliyamo/marketplace-negotiation/internal/money"
    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

// NegotiationHandler exposes the negotiation engine over HTTP.  All methods
// assume JWTAuth and RequireRole already ran; the authenticated actor id is
// passed to the engine unchanged.
type NegotiationHandler struct {
    Engine *negotiation.Engine
}

// NewNegotiationHandler constructs a NegotiationHandler.  engine must be non-nil.
func NewNegotiationHandler(engine *negotiation.Engine) *NegotiationHandler {
    if engine == nil {
        panic("nil engine passed to NewNegotiationHandler")
    }
    return &NegotiationHandler{Engine: engine}
}

type createRequest struct {
    ServiceID     string `json:"service_id" validate:"required,max=64"`
    ServiceTitle  string `json:"service_title" validate:"required,max=255"`
    ProviderID    string `json:"provider_id" validate:"required,max=64"`
    Currency      string `json:"currency" validate:"required,len=3,alpha"`
    OriginalPrice string `json:"original_price" validate:"required,numeric"`
    OfferedPrice  string `json:"offered_price" validate:"required,numeric"`
}

// transitionRequest is the body of every transition.  Version is the
// version the caller last read; zero skips the staleness check.
type transitionRequest struct {
    Version int64  `json:"version" validate:"gte=0"`
    Amount  string `json:"amount" validate:"omitempty,numeric"`
}

// Create handles POST /v1/negotiations.  The authenticated client opens a
// negotiation with an offer and receives 201 with the summary.
func (h *NegotiationHandler) Create(c echo.Context) error {
    actorID, ok := middleware.ActorID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body createRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := c.Validate(&body); err != nil {
        return respondError(c, err)
    }
    original, err := money.Parse(body.OriginalPrice, body.Currency)
    if err != nil {
        return respondError(c, err)
    }
    offered, err := money.Parse(body.OfferedPrice, body.Currency)
    if err != nil {
        return respondError(c, err)
    }
    n, err := h.Engine.CreateOffer(c.Request().Context(), negotiation.OfferInput{
        ServiceID:     body.ServiceID,
        ServiceTitle:  body.ServiceTitle,
        OriginalPrice: original,
        OfferedPrice:  offered,
        ClientID:      actorID,
        ProviderID:    strings.TrimSpace(body.ProviderID),
    })
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, negotiation.Summarize(n, actorID, requestLocale(c)))
}

// List handles GET /v1/negotiations.
func (h *NegotiationHandler) List(c echo.Context) error {
    actorID, ok := middleware.ActorID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    out, err := h.Engine.Summaries(c.Request().Context(), actorID, requestLocale(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"negotiations": out})
}

// Get handles GET /v1/negotiations/:id.
func (h *NegotiationHandler) Get(c echo.Context) error {
    actorID, ok := middleware.ActorID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    s, err := h.Engine.Summary(c.Request().Context(), c.Param("id"), actorID, requestLocale(c))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, s)
}

// History handles GET /v1/negotiations/:id/history.
func (h *NegotiationHandler) History(c echo.Context) error {
    actorID, ok := middleware.ActorID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    n, err := h.Engine.Get(c.Request().Context(), c.Param("id"), actorID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"id": n.ID, "version": n.Version, "history": n.History})
}

// Actions handles GET /v1/negotiations/:id/actions.
func (h *NegotiationHandler) Actions(c echo.Context) error {
    actorID, ok := middleware.ActorID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    n, err := h.Engine.Get(c.Request().Context(), c.Param("id"), actorID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"version": n.Version, "actions": negotiation.CanAct(n, actorID)})
}

// Counter handles POST /v1/negotiations/:id/counter.  The amount is read in
// the negotiation's currency.
func (h *NegotiationHandler) Counter(c echo.Context) error { return h.transition(c, model.ActionCounter) }

// Accept handles POST /v1/negotiations/:id/accept.
func (h *NegotiationHandler) Accept(c echo.Context) error { return h.transition(c, model.ActionAccept) }

// Reject handles POST /v1/negotiations/:id/reject.
func (h *NegotiationHandler) Reject(c echo.Context) error { return h.transition(c, model.ActionReject) }

// Cancel handles POST /v1/negotiations/:id/cancel.
func (h *NegotiationHandler) Cancel(c echo.Context) error { return h.transition(c, model.ActionCancel) }

// Complete handles POST /v1/negotiations/:id/complete.
func (h *NegotiationHandler) Complete(c echo.Context) error { return h.transition(c, model.ActionComplete) }

func (h *NegotiationHandler) transition(c echo.Context, action model.Action) error {
    actorID, ok := middleware.ActorID(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body transitionRequest
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := c.Validate(&body); err != nil {
        return respondError(c, err)
    }
    ctx := c.Request().Context()
    id := c.Param("id")

    if action == model.ActionCounter {
        if strings.TrimSpace(body.Amount) == "" {
            return respondError(c, negotiation.ErrInvalidAmount)
        }
        n, err := h.Engine.CounterAmount(ctx, id, body.Version, actorID, body.Amount)
        if err != nil {
            return respondError(c, err)
        }
        return c.JSON(http.StatusOK, negotiation.Summarize(n, actorID, requestLocale(c)))
    }
    n, err := h.Engine.Apply(ctx, id, body.Version, actorID, action, nil)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, negotiation.Summarize(n, actorID, requestLocale(c)))
}
