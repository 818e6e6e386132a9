package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/JonasWeigert/PawTrack/app/controllers"
	"github.com/JonasWeigert/PawTrack/internal/pkg/middleware"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter registers all HTTP routes on the app.
func InstallRouter(app *fiber.App) {
	setup(app, NewApiRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}

type ApiRouter struct {
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api/v1")
	api.Get("/ping", controllers.HandlePing)

	// Admin console endpoints; the middleware resolves the actor-identity
	// API key and rejects missing keys (401) and non-admin actors (403).
	admin := api.Group("/admin", middleware.AdminAPIAuthMiddleware())
	billing := admin.Group("/billing")
	billing.Get("/payment-history", controllers.HandleAdminPaymentHistory)
	billing.Post("/retry-payment", controllers.HandleAdminRetryPayment)
	billing.Post("/refund", controllers.HandleAdminProcessRefund)
	billing.Get("/audit", controllers.HandleAdminBillingAudit)
}
