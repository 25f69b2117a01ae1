// file: internals/route/details/webhook_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	subscriptionController "tutorhub_backend/internals/features/finance/subscriptions/controller"
	subscriptionService "tutorhub_backend/internals/features/finance/subscriptions/service"
	attendanceController "tutorhub_backend/internals/features/school/attendance/controller"
)

// WebhookRoutes: endpoint publik untuk provider eksternal (group /api/public).
func WebhookRoutes(r fiber.Router, db *gorm.DB, renewal *subscriptionService.RenewalService, policy configs.Policy) {
	meetingCtl := attendanceController.NewMeetingWebhookController(db, policy)
	paymentCtl := subscriptionController.NewPaymentWebhookController(db, renewal)

	webhooks := r.Group("/webhooks")
	webhooks.Post("/meeting-events", meetingCtl.HandleMeetingEvent)
	webhooks.Post("/payment", paymentCtl.HandlePaymentNotification)
}
