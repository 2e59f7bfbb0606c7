package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/config"
	"github.com/ignatzorin/marketplace-backend/internal/http/handlers"
	"github.com/ignatzorin/marketplace-backend/internal/http/middleware"
	"github.com/ignatzorin/marketplace-backend/internal/models"
	"github.com/ignatzorin/marketplace-backend/internal/service"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Items         *handlers.ItemHandler
	Auctions      *handlers.AuctionHandler
	Bids          *handlers.BidHandler
	Orders        *handlers.OrderHandler
	Payments      *handlers.PaymentHandler
	Notifications *handlers.NotificationHandler
	Watchlist     *handlers.WatchlistHandler
	Reports       *handlers.ReportHandler
	WS            *handlers.WSHandler
	Health        *handlers.HealthHandler
}

// Setup builds the gin engine with all routes and middleware attached.
func Setup(cfg *config.Config, tokens *service.TokenManager, h Handlers) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Check)
	r.GET("/ws", h.WS.Connect)

	api := r.Group("/api")
	api.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))

	// Credential endpoints get a much tighter limit than the rest of the API.
	auth := api.Group("/auth")
	auth.Use(middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod))
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
	}

	// Public catalogue.
	{
		api.GET("/items", h.Items.ListActive)
		api.GET("/items/:id", middleware.UUIDValidator("id"), h.Items.Get)
		api.GET("/items/:id/auction", middleware.UUIDValidator("id"), h.Auctions.GetByItem)
		api.GET("/auctions/:id", middleware.UUIDValidator("id"), h.Auctions.Get)
		api.GET("/auctions/:id/bids", middleware.UUIDValidator("id"), h.Auctions.ListBids)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/me", h.Auth.Me)

		protected.POST("/items", h.Items.Create)
		protected.GET("/items/mine", h.Items.ListMine)
		protected.DELETE("/items/:id", middleware.UUIDValidator("id"), h.Items.Cancel)
		protected.POST("/items/:id/watch", middleware.UUIDValidator("id"), h.Watchlist.Watch)
		protected.DELETE("/items/:id/watch", middleware.UUIDValidator("id"), h.Watchlist.Unwatch)
		protected.GET("/watchlist", h.Watchlist.List)

		protected.POST("/auctions", h.Auctions.Create)
		protected.POST("/items/:id/bids", middleware.UUIDValidator("id"), h.Bids.Place)
		protected.GET("/bids/mine", h.Bids.ListMine)

		protected.POST("/items/:id/buy", middleware.UUIDValidator("id"), h.Orders.BuyNow)
		protected.GET("/orders", h.Orders.List)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), h.Orders.Get)
		protected.POST("/orders/:id/pay", middleware.UUIDValidator("id"), h.Payments.Pay)
		protected.POST("/orders/:id/ship", middleware.UUIDValidator("id"), h.Orders.Ship)
		protected.POST("/orders/:id/confirm-delivery", middleware.UUIDValidator("id"), h.Orders.ConfirmDelivery)
		protected.POST("/orders/:id/dispute", middleware.UUIDValidator("id"), h.Orders.Dispute)
		protected.POST("/orders/:id/lost", middleware.UUIDValidator("id"), h.Orders.MarkLost)
		protected.GET("/orders/:id/shipping", middleware.UUIDValidator("id"), h.Orders.GetShipping)
		protected.GET("/orders/:id/escrow", middleware.UUIDValidator("id"), h.Payments.GetTransaction)
		protected.GET("/wallet", h.Payments.GetWallet)

		protected.GET("/notifications", h.Notifications.List)
		protected.GET("/notifications/unread", h.Notifications.CountUnread)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkRead)
		protected.POST("/notifications/read-all", h.Notifications.MarkAllRead)

		protected.POST("/reports", h.Reports.File)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/items/pending", h.Items.ListPending)
		admin.POST("/items/:id/approve", middleware.UUIDValidator("id"), h.Items.Approve)
		admin.POST("/items/:id/reject", middleware.UUIDValidator("id"), h.Items.Reject)
		admin.POST("/orders/:id/refund", middleware.UUIDValidator("id"), h.Payments.Refund)
		admin.POST("/orders/:id/release", middleware.UUIDValidator("id"), h.Payments.Release)
		admin.GET("/reports", h.Reports.ListOpen)
	}

	return r
}
