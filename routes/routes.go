package routes

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"marketplace-backend/controllers"
	"marketplace-backend/middleware"
)

type Controllers struct {
	Orders        *controllers.OrderController
	Payments      *controllers.PaymentController
	Wallets       *controllers.WalletController
	Products      *controllers.ProductController
	StripeWebhook *controllers.StripeWebhookController
	MomoWebhook   *controllers.MomoWebhookController
}

func RegisterRoutes(r *gin.Engine, c *Controllers, jwtSecret []byte) {
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// Gateway webhooks (no auth; verified by signature).
	webhooks := r.Group("/webhooks")
	webhooks.Use(middleware.RateLimit(rate.Limit(50), 100))
	webhooks.POST("/stripe", c.StripeWebhook.HandleWebhook)
	webhooks.POST("/momo", c.MomoWebhook.HandleWebhook)

	// Public catalog reads.
	products := r.Group("/products")
	products.GET("", c.Products.ListProducts)
	products.GET("/:id", c.Products.GetProduct)

	auth := middleware.AuthMiddleware(jwtSecret)

	orders := r.Group("/orders")
	orders.Use(auth)
	orders.POST("", c.Orders.CreateOrder)
	orders.GET("", c.Orders.GetOrders)
	orders.GET("/:id", c.Orders.GetOrder)
	orders.POST("/:id/pay", c.Payments.InitiatePayment)

	wallet := r.Group("/wallet")
	wallet.Use(auth, middleware.RateLimit(rate.Limit(10), 20))
	wallet.GET("/balance", c.Wallets.GetBalance)
	wallet.GET("/transactions", c.Wallets.GetLedger)
	wallet.POST("/transfer", c.Wallets.Transfer)
	wallet.POST("/withdraw", c.Wallets.Withdraw)

	admin := r.Group("/admin")
	admin.Use(auth, middleware.RequireAdmin())
	admin.GET("/withdrawals", c.Wallets.ListPayouts)
	admin.POST("/withdrawals/:id/approve", c.Wallets.ApproveWithdrawal)
	admin.POST("/withdrawals/:id/reject", c.Wallets.RejectWithdrawal)
}
