package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/liberta/backend/internal/application/reconcile"
	"github.com/liberta/backend/internal/infrastructure/logger"
	"github.com/liberta/backend/internal/interfaces/http/dto"
)

// CarrierWebhookHandler receives pushed shipping-status events from the
// carrier
type CarrierWebhookHandler struct {
	applier *reconcile.WebhookApplier
}

// NewCarrierWebhookHandler creates a new CarrierWebhookHandler
func NewCarrierWebhookHandler(applier *reconcile.WebhookApplier) *CarrierWebhookHandler {
	return &CarrierWebhookHandler{applier: applier}
}

// carrierWebhookRequest is the carrier's push payload
type carrierWebhookRequest struct {
	Event   string `json:"event" binding:"required"`
	Payload struct {
		ExternalOrderID string `json:"external_order_id"`
		Status          int    `json:"status"`
		DisplayIDOrder  string `json:"display_id_order"`
	} `json:"payload"`
}

// carrierWebhookResponse reports whether the event was accepted against a
// known order
type carrierWebhookResponse struct {
	Applied        bool   `json:"applied"`
	OrderReference string `json:"order_reference,omitempty"`
}

// Handle applies one pushed status event. Unknown event types are accepted
// with 200 and not applied, so the carrier never retries them.
func (h *CarrierWebhookHandler) Handle(c *gin.Context) {
	var req carrierWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponse("INVALID_PAYLOAD", err.Error()))
		return
	}

	applied, err := h.applier.ApplyEvent(c.Request.Context(), reconcile.Event{
		EventType:  req.Event,
		Reference:  req.Payload.ExternalOrderID,
		StatusCode: req.Payload.Status,
		TrackingID: req.Payload.DisplayIDOrder,
	})
	if err != nil {
		logger.GetGinLogger(c).Error("Webhook application failed",
			zap.String("reference", req.Payload.ExternalOrderID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse("APPLY_FAILED", "Failed to apply status event"))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(carrierWebhookResponse{
		Applied:        applied,
		OrderReference: req.Payload.ExternalOrderID,
	}))
}
