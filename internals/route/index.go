// file: internals/route/index.go
package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	subscriptionService "tutorhub_backend/internals/features/finance/subscriptions/service"
	notifService "tutorhub_backend/internals/features/home/notifications/service"
	sessionService "tutorhub_backend/internals/features/school/sessions/service"
	"tutorhub_backend/internals/middlewares"
	routeDetails "tutorhub_backend/internals/route/details"
)

// Deps dirakit di main dan diwariskan ke semua route group.
type Deps struct {
	DB       *gorm.DB
	Sessions *sessionService.SessionService
	Renewal  *subscriptionService.RenewalService
	Notifier notifService.Notifier
	Policy   configs.Policy
}

func SetupRoutes(app *fiber.App, deps Deps) {
	// ===================== PUBLIC (webhook, tanpa JWT) =====================
	log.Println("[INFO] Setting up PUBLIC group...")
	public := app.Group("/api/public", middlewares.WebhookRateLimiter())
	routeDetails.WebhookRoutes(public, deps.DB, deps.Renewal, deps.Policy)

	// ===================== PRIVATE (USER) =====================
	log.Println("[INFO] Setting up PRIVATE group...")
	user := app.Group("/api/u",
		middlewares.AuthJWT(middlewares.AuthJWTOpts{
			Secret:              os.Getenv("JWT_SECRET"),
			AllowCookieFallback: true,
		}),
	)
	routeDetails.NotificationRoutes(user, deps.DB)

	// ===================== ADMIN / TEACHER (per school) =====================
	log.Println("[INFO] Setting up ADMIN group...")
	admin := app.Group("/api/a",
		middlewares.AuthJWT(middlewares.AuthJWTOpts{
			Secret:              os.Getenv("JWT_SECRET"),
			AllowCookieFallback: true,
		}),
	)
	routeDetails.SessionRoutes(admin, deps.DB, deps.Sessions, deps.Notifier, deps.Policy)
	routeDetails.SubscriptionRoutes(admin, deps.DB, deps.Renewal)
}
