package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/http/handlers/common"
	"github.com/ignatzorin/creator-settlement/internal/logger"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/creator-settlement/internal/service"
)

// maxWebhookBody - предел тела вебхука.
const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	payments *service.PaymentService
	webhooks *service.WebhookService
}

func NewPaymentHandler(payments *service.PaymentService, webhooks *service.WebhookService) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhooks: webhooks}
}

// Checkout POST /payments/checkout
func (h *PaymentHandler) Checkout(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req struct {
		OrderID uuid.UUID `json:"order_id" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.payments.Checkout(c.Request.Context(), actor, req.OrderID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Webhook POST /payments/webhook
// Подпись проверяется по сырому телу, поэтому JSON здесь не биндим.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondError(c, http.StatusRequestEntityTooLarge, apperror.ErrCodeValidation, "тело запроса слишком большое")
			return
		}
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	res, err := h.webhooks.Handle(c.Request.Context(), c.Request.Header, body)
	if err != nil {
		if apperror.CodeOf(err) != apperror.ErrCodeAuthenticity {
			logger.Log.WithError(err).Warn("webhook delivery rejected, provider will retry")
		}
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Status GET /payments/status/:intentId
func (h *PaymentHandler) Status(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	intentID := c.Param("intentId")
	if intentID == "" {
		common.RespondBadRequest(c, "intentId обязателен")
		return
	}

	view, err := h.payments.Status(c.Request.Context(), actor, intentID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Refund POST /payments/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req struct {
		PaymentIntentID string   `json:"payment_intent_id" binding:"required"`
		Amount          *float64 `json:"amount"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	res, err := h.payments.Refund(c.Request.Context(), actor, req.PaymentIntentID, req.Amount)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
