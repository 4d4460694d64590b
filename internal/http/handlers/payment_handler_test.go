package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/creator-settlement/internal/http/middleware"
	"github.com/ignatzorin/creator-settlement/internal/models"
)

func withActor(userID uuid.UUID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Set(middleware.ContextRoleKey, role)
		c.Next()
	}
}

func TestPaymentHandler_Checkout_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{}
	r.POST("/payments/checkout", handler.Checkout)

	req, _ := http.NewRequest("POST", "/payments/checkout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_Checkout_InvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{}
	r.POST("/payments/checkout", withActor(uuid.New(), models.RoleBrand), handler.Checkout)

	req, _ := http.NewRequest("POST", "/payments/checkout", bytes.NewBufferString(`{"order_id":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestPaymentHandler_Refund_MissingIntent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{}
	r.POST("/payments/refund", withActor(uuid.New(), models.RoleAdmin), handler.Refund)

	req, _ := http.NewRequest("POST", "/payments/refund", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_UnknownRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &PaymentHandler{}
	r.GET("/payments/status/:intentId", withActor(uuid.New(), "guest"), handler.Status)

	req, _ := http.NewRequest("GET", "/payments/status/pi_1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithdrawalHandler_RequestValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WithdrawalHandler{}
	r.POST("/withdrawal/request", withActor(uuid.New(), models.RoleCreator), handler.RequestWithdrawal)

	bodies := []string{
		`{}`,
		`{"amount": 200}`,
		`{"amount": 200, "bank_details": {"holder_name": "A", "bank_name": "B"}}`,
		`{"amount": -1, "bank_details": {"holder_name": "A", "bank_name": "B", "account_number": "12345678"}}`,
	}
	for _, body := range bodies {
		req, _ := http.NewRequest("POST", "/withdrawal/request", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestWithdrawalHandler_TransitionInvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WithdrawalHandler{}
	r.PATCH("/withdrawal/:id/approve", withActor(uuid.New(), models.RoleAdmin), handler.Approve)

	req, _ := http.NewRequest("PATCH", "/withdrawal/123/approve", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceiptFiles_PathTraversal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewReceiptFiles(t.TempDir())
	r.GET("/receipts/*path", handler.Serve)

	req, _ := http.NewRequest("GET", "/receipts/../../etc/passwd", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code)
}
