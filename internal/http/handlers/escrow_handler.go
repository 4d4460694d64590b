package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/creator-settlement/internal/http/handlers/common"
	"github.com/ignatzorin/creator-settlement/internal/service"
)

type EscrowHandler struct {
	escrow *service.EscrowService
}

func NewEscrowHandler(escrow *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrow: escrow}
}

// GetEscrow GET /escrow/:agreementId
func (h *EscrowHandler) GetEscrow(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	agreementID, err := common.ParseUUIDParam(c, "agreementId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	escrow, err := h.escrow.GetEscrow(c.Request.Context(), actor, agreementID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, escrow)
}
