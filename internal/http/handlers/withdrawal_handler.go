package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/ignatzorin/creator-settlement/internal/http/handlers/common"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/pkg/apperror"
	"github.com/ignatzorin/creator-settlement/internal/service"
	"github.com/ignatzorin/creator-settlement/internal/storage"
)

// Разрешённые типы чеков
var allowedReceiptTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

type WithdrawalHandler struct {
	svc      *service.WithdrawalService
	receipts storage.Storage
}

func NewWithdrawalHandler(s *service.WithdrawalService, receipts storage.Storage) *WithdrawalHandler {
	return &WithdrawalHandler{svc: s, receipts: receipts}
}

// RequestWithdrawal POST /withdrawal/request
func (h *WithdrawalHandler) RequestWithdrawal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	var req struct {
		Amount      float64            `json:"amount" binding:"required,gt=0"`
		BankDetails models.BankDetails `json:"bank_details" binding:"required"`
	}
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	w, err := h.svc.RequestWithdrawal(c.Request.Context(), actor, service.WithdrawalInput{
		Amount:      req.Amount,
		BankDetails: req.BankDetails,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// GetBalance GET /withdrawal/balance
func (h *WithdrawalHandler) GetBalance(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	balance, err := h.svc.GetBalance(c.Request.Context(), actor)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// ListTransactions GET /withdrawal/transactions
func (h *WithdrawalHandler) ListTransactions(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	txs, err := h.svc.ListTransactions(c.Request.Context(), actor, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "limit": limit, "offset": offset})
}

// ListWithdrawals GET /withdrawal/requests
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	limit, offset := common.GetPagination(c)
	list, err := h.svc.ListWithdrawals(c.Request.Context(), actor, c.Query("status"), limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list, "limit": limit, "offset": offset})
}

// GetWithdrawal GET /withdrawal/:id
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.svc.GetWithdrawal(c.Request.Context(), actor, id)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Approve PATCH /withdrawal/:id/approve
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	h.transition(c, func(actor service.Actor, c *gin.Context) (*models.WithdrawalRequest, error) {
		id, _ := common.ParseUUIDParam(c, "id")
		return h.svc.Approve(c.Request.Context(), actor, id)
	})
}

// Reject PATCH /withdrawal/:id/reject
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	h.transition(c, func(actor service.Actor, c *gin.Context) (*models.WithdrawalRequest, error) {
		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := common.BindAndValidate(c, &req); err != nil {
			return nil, apperror.Validation("укажите причину отклонения")
		}
		id, _ := common.ParseUUIDParam(c, "id")
		return h.svc.Reject(c.Request.Context(), actor, id, req.Reason)
	})
}

// Process PATCH /withdrawal/:id/process
func (h *WithdrawalHandler) Process(c *gin.Context) {
	h.transition(c, func(actor service.Actor, c *gin.Context) (*models.WithdrawalRequest, error) {
		id, _ := common.ParseUUIDParam(c, "id")
		return h.svc.Process(c.Request.Context(), actor, id)
	})
}

// Complete PATCH /withdrawal/:id/complete
func (h *WithdrawalHandler) Complete(c *gin.Context) {
	h.transition(c, func(actor service.Actor, c *gin.Context) (*models.WithdrawalRequest, error) {
		var req struct {
			ReceiptURL string `json:"receipt_url" binding:"required"`
		}
		if err := common.BindAndValidate(c, &req); err != nil {
			return nil, apperror.Validation("укажите ссылку на чек")
		}
		id, _ := common.ParseUUIDParam(c, "id")
		return h.svc.Complete(c.Request.Context(), actor, id, req.ReceiptURL)
	})
}

func (h *WithdrawalHandler) transition(c *gin.Context, fn func(service.Actor, *gin.Context) (*models.WithdrawalRequest, error)) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}
	if _, err := common.ParseUUIDParam(c, "id"); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	w, err := fn(actor, c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// UploadReceipt POST /withdrawal/receipts (multipart, поле file)
func (h *WithdrawalHandler) UploadReceipt(c *gin.Context) {
	actor, ok := common.CurrentActor(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "файл обязателен")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		common.RespondBadRequest(c, "не удалось открыть файл")
		return
	}
	defer file.Close()

	// Проверяем магические байты (реальный тип файла)
	head := make([]byte, 261)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		common.RespondBadRequest(c, "не удалось прочитать файл")
		return
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || !allowedReceiptTypes[kind.MIME.Value] {
		common.RespondBadRequest(c, "чек должен быть в формате PDF, JPEG или PNG")
		return
	}

	name := strings.TrimSuffix(filepath.Base(fileHeader.Filename), filepath.Ext(fileHeader.Filename)) + "." + kind.Extension
	res, err := h.receipts.Put(c.Request.Context(), io.MultiReader(bytes.NewReader(head), file), storage.PutInput{
		Filename:    name,
		ContentType: kind.MIME.Value,
		Owner:       actor.ID.String(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			common.RespondError(c, http.StatusRequestEntityTooLarge, apperror.ErrCodeValidation, "файл слишком большой")
			return
		}
		common.RespondAppError(c, apperror.Internal(err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"receipt_url": res.URL, "key": res.Key, "size": res.Size})
}
