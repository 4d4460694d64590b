package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/creator-settlement/internal/config"
	"github.com/ignatzorin/creator-settlement/internal/http/handlers"
	"github.com/ignatzorin/creator-settlement/internal/http/middleware"
	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/service"
)

// Handlers - все обработчики API.
type Handlers struct {
	Orders      *handlers.OrderHandler
	Payments    *handlers.PaymentHandler
	Escrow      *handlers.EscrowHandler
	Withdrawals *handlers.WithdrawalHandler
	Submissions *handlers.SubmissionHandler
	Health      *handlers.HealthHandler
	WS          *handlers.WSHandler
	// Receipts - только для локального хранилища чеков; nil для S3.
	Receipts *handlers.ReceiptFiles
}

func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager, limiterStore limiter.Store) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	if h.Health != nil {
		r.GET("/health", h.Health.Health)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	// Вебхук шлюза аутентифицируется подписью, а не токеном
	api.POST("/payments/webhook", h.Payments.Webhook)
	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	limited := middleware.RateLimitMiddleware(limiterStore, cfg.RateLimitLimit, cfg.RateLimitPeriod)
	brand := middleware.RequireRoles(models.RoleBrand)
	creator := middleware.RequireRoles(models.RoleCreator)
	admin := middleware.RequireRoles(models.RoleAdmin)
	brandOrAdmin := middleware.RequireRoles(models.RoleBrand, models.RoleAdmin)
	creatorOrAdmin := middleware.RequireRoles(models.RoleCreator, models.RoleAdmin)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.POST("/orders", brand, h.Orders.CreateOrder)
		protected.GET("/orders", h.Orders.ListOrders)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), h.Orders.GetOrder)
		protected.GET("/orders/:id/events", middleware.UUIDValidator("id"), h.Orders.ListOrderEvents)
		protected.PATCH("/orders/:id/cancel", middleware.UUIDValidator("id"), brandOrAdmin, h.Orders.CancelOrder)

		protected.POST("/payments/checkout", brand, limited, h.Payments.Checkout)
		protected.GET("/payments/status/:intentId", h.Payments.Status)
		protected.POST("/payments/refund", admin, h.Payments.Refund)

		protected.GET("/escrow/:agreementId", middleware.UUIDValidator("agreementId"), h.Escrow.GetEscrow)

		protected.POST("/withdrawal/request", creator, limited, h.Withdrawals.RequestWithdrawal)
		protected.GET("/withdrawal/balance", creator, h.Withdrawals.GetBalance)
		protected.GET("/withdrawal/transactions", creator, h.Withdrawals.ListTransactions)
		protected.GET("/withdrawal/requests", creatorOrAdmin, h.Withdrawals.ListWithdrawals)
		protected.POST("/withdrawal/receipts", admin, h.Withdrawals.UploadReceipt)
		protected.GET("/withdrawal/:id", middleware.UUIDValidator("id"), creatorOrAdmin, h.Withdrawals.GetWithdrawal)
		protected.PATCH("/withdrawal/:id/approve", middleware.UUIDValidator("id"), admin, h.Withdrawals.Approve)
		protected.PATCH("/withdrawal/:id/reject", middleware.UUIDValidator("id"), admin, h.Withdrawals.Reject)
		protected.PATCH("/withdrawal/:id/process", middleware.UUIDValidator("id"), admin, h.Withdrawals.Process)
		protected.PATCH("/withdrawal/:id/complete", middleware.UUIDValidator("id"), admin, h.Withdrawals.Complete)

		protected.POST("/submissions/:id/approve", middleware.UUIDValidator("id"), brand, h.Submissions.Approve)
		protected.GET("/submissions/:id/video", middleware.UUIDValidator("id"), h.Submissions.Video)

		if h.Receipts != nil {
			protected.GET("/receipts/*path", admin, h.Receipts.Serve)
		}
	}

	return r
}
