// Package api exposes the engine over HTTP. Handlers are transport-thin:
// they validate input, delegate to the offer service or the sweep runner,
// and translate domain errors into HTTP results with stable error codes
// so a UI can tell "this offer was already decided" from "please refresh
// and try again".
package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"offerflow/actionlink"
	"offerflow/offer"
	"offerflow/sweep"
)

const (
	errCodeBadRequest      = "bad_request"
	errCodeUnauthorized    = "unauthorized"
	errCodeNotFound        = "not_found"
	errCodeAlreadyResolved = "already_resolved"
	errCodeVersionConflict = "version_conflict"
	errCodeInvalidTarget   = "invalid_transition"
	errCodeStoreDown       = "store_unavailable"
	errCodeInternal        = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func fail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Code: code, Message: message})
}

// Handlers bundles the dependencies of the HTTP surface.
type Handlers struct {
	svc    *offer.Service
	runner *sweep.Runner
	links  *actionlink.Issuer
	log    zerolog.Logger
}

func NewHandlers(svc *offer.Service, runner *sweep.Runner, links *actionlink.Issuer, log zerolog.Logger) *Handlers {
	return &Handlers{svc: svc, runner: runner, links: links, log: log}
}

type customerActionRequest struct {
	Action          string `json:"action" binding:"required,oneof=accept reject"`
	ExpectedVersion *int64 `json:"expected_version"`
	ActorID         string `json:"actor_id"`
}

type actionResponse struct {
	Status  string `json:"status"`
	Version int64  `json:"version"`
}

// CustomerAction handles POST /offers/:id/action.
func (h *Handlers) CustomerAction(c *gin.Context) {
	var req customerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errCodeBadRequest, "action must be accept or reject")
		return
	}

	result, err := h.svc.ApplyCustomerAction(c.Request.Context(), offer.CustomerActionParams{
		OfferID:         c.Param("id"),
		Action:          offer.Action(req.Action),
		ExpectedVersion: req.ExpectedVersion,
		ActorID:         req.ActorID,
	})
	if err != nil {
		h.failFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, actionResponse{Status: string(result.Status), Version: result.Version})
}

// LinkAction handles GET /offer-actions?token=...&action=accept — the
// endpoint behind the accept/reject links in reminder emails. The token
// both authenticates and selects the offer.
func (h *Handlers) LinkAction(c *gin.Context) {
	action := c.Query("action")
	if action != string(offer.ActionAccept) && action != string(offer.ActionReject) {
		fail(c, http.StatusBadRequest, errCodeBadRequest, "action must be accept or reject")
		return
	}

	offerID, contactID, err := h.links.Verify(c.Query("token"))
	if err != nil {
		fail(c, http.StatusUnauthorized, errCodeUnauthorized, "invalid or expired action link")
		return
	}

	result, err := h.svc.ApplyCustomerAction(c.Request.Context(), offer.CustomerActionParams{
		OfferID: offerID,
		Action:  offer.Action(action),
		ActorID: contactID,
	})
	if err != nil {
		h.failFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, actionResponse{Status: string(result.Status), Version: result.Version})
}

type overrideRequest struct {
	ToStatus string `json:"to_status" binding:"required"`
	Note     string `json:"note"`
}

// ManualOverride handles POST /offers/:id/override. The acting operator
// is taken from the X-Actor-ID header; authentication of that identity
// happens upstream.
func (h *Handlers) ManualOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errCodeBadRequest, "to_status is required")
		return
	}
	actorID := c.GetHeader("X-Actor-ID")
	if actorID == "" {
		fail(c, http.StatusBadRequest, errCodeBadRequest, "X-Actor-ID header is required")
		return
	}

	result, err := h.svc.ApplyManualOverride(c.Request.Context(), offer.ManualOverrideParams{
		OfferID:  c.Param("id"),
		ToStatus: offer.Status(req.ToStatus),
		ActorID:  actorID,
		Note:     req.Note,
	})
	if err != nil {
		h.failFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, actionResponse{Status: string(result.Status), Version: result.Version})
}

type historyEntryResponse struct {
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	OccurredAt time.Time `json:"occurred_at"`
	Trigger    string    `json:"trigger"`
	ActorID    *string   `json:"actor_id,omitempty"`
	Note       string    `json:"note,omitempty"`
}

// History handles GET /offers/:id/history.
func (h *Handlers) History(c *gin.Context) {
	entries, err := h.svc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.failFromErr(c, err)
		return
	}

	out := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntryResponse{
			FromStatus: string(e.FromStatus),
			ToStatus:   string(e.ToStatus),
			OccurredAt: e.OccurredAt,
			Trigger:    string(e.Trigger),
			ActorID:    e.ActorID,
			Note:       e.Note,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

type sweepRequest struct {
	Now *time.Time `json:"now"`
}

// TriggerSweep handles POST /internal/sweep — the clock/trigger adapter
// for deployments that fire the daily sweep over HTTP instead of exec'ing
// the sweeper binary. The timestamp defaults to wall clock.
func (h *Handlers) TriggerSweep(c *gin.Context) {
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, errCodeBadRequest, "now must be an RFC3339 timestamp")
		return
	}

	now := time.Now()
	if req.Now != nil {
		now = *req.Now
	}

	report, err := h.runner.Run(c.Request.Context(), now)
	if err != nil {
		h.log.Error().Err(err).Msg("sweep run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":   errCodeStoreDown,
			"report": report,
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Health handles GET /healthz.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) failFromErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, offer.ErrOfferNotFound):
		fail(c, http.StatusNotFound, errCodeNotFound, "offer not found")
	case errors.Is(err, offer.ErrAlreadyResolved):
		fail(c, http.StatusConflict, errCodeAlreadyResolved, "this offer was already decided")
	case errors.Is(err, offer.ErrVersionConflict):
		fail(c, http.StatusConflict, errCodeVersionConflict, "offer changed underneath you; reload and retry")
	case errors.Is(err, offer.ErrInvalidTransition):
		fail(c, http.StatusUnprocessableEntity, errCodeInvalidTarget, err.Error())
	case errors.Is(err, offer.ErrStoreUnavailable):
		fail(c, http.StatusServiceUnavailable, errCodeStoreDown, "persistence layer unavailable")
	default:
		h.log.Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, errCodeInternal, "internal error")
	}
}
