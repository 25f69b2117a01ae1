// file: internals/route/details/notification_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	notificationController "tutorhub_backend/internals/features/home/notifications/controller"
)

// NotificationRoutes: notifikasi milik user login (group /api/u).
func NotificationRoutes(r fiber.Router, db *gorm.DB) {
	ctl := notificationController.NewNotificationController(db)

	r.Get("/notifications", ctl.ListMine)
}
