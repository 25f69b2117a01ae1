// file: internals/route/details/subscription_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	subscriptionController "tutorhub_backend/internals/features/finance/subscriptions/controller"
	subscriptionService "tutorhub_backend/internals/features/finance/subscriptions/service"
)

// SubscriptionRoutes: CRUD + lifecycle subscription (group /api/a).
func SubscriptionRoutes(r fiber.Router, db *gorm.DB, renewal *subscriptionService.RenewalService) {
	ctl := subscriptionController.NewSubscriptionController(db, renewal)

	subs := r.Group("/subscriptions")
	subs.Post("/", ctl.Create)
	subs.Get("/", ctl.List)
	subs.Post("/quota-reversal", ctl.ReverseQuota)
	subs.Get("/:id", ctl.GetByID)
	subs.Patch("/:id/auto-renew", ctl.SetAutoRenew)
	subs.Post("/:id/cancel", ctl.Cancel)
	subs.Post("/:id/reactivate", ctl.Reactivate)
}
