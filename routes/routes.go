package routes

import (
	"net/http"
	"time"

	"slotbook/handlers"
	"slotbook/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// HandlerBundle gathers the wired handlers and endpoint-specific middleware.
type HandlerBundle struct {
	Reservation *handlers.ReservationHandler
	Webhook     *handlers.WebhookHandler
	Admin       *handlers.AdminHandler

	// ReserveRateLimit guards the financial write path (fail closed);
	// AdminRateLimit guards operator actions (fail open).
	ReserveRateLimit gin.HandlerFunc
	AdminRateLimit   gin.HandlerFunc
}

// RegisterReservationRoutes sets up the endpoints for slot reservation.
func RegisterReservationRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/reservations")
	{
		api.POST("", hb.ReserveRateLimit, hb.Reservation.ReserveHandler)
		api.GET("/:id", hb.Reservation.GetHoldHandler)
		api.DELETE("/:id", hb.ReserveRateLimit, hb.Reservation.CancelHoldHandler)
	}
}

// RegisterWebhookRoutes sets up the payment-processor callback endpoint.
// Signature verification is the auth here; no rate limit, Stripe retries on
// 429 the same as on 5xx.
func RegisterWebhookRoutes(r *gin.Engine, hb *HandlerBundle) {
	r.POST("/api/webhooks/stripe", hb.Webhook.StripeWebhookHandler)
}

// RegisterAdminRoutes sets up endpoints for operator recovery.
func RegisterAdminRoutes(r *gin.Engine, hb *HandlerBundle) {
	adminGroup := r.Group("/api/admin")
	{
		adminGroup.Use(hb.AdminRateLimit)
		adminGroup.POST("/reconcile/:sessionID", hb.Admin.ForceReconcileHandler)
		adminGroup.POST("/sweep", hb.Admin.SweepHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "health": utils.GetHealthStatus()})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *HandlerBundle) {
	// Setup global middleware (e.g., CORS) here.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Idempotency-Key", "X-Holder-Identity"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterReservationRoutes(r, hb)
	RegisterWebhookRoutes(r, hb)
	RegisterAdminRoutes(r, hb)
	RegisterHealthRoute(r)
}
