// file: internals/route/details/session_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	notifService "tutorhub_backend/internals/features/home/notifications/service"
	attendanceController "tutorhub_backend/internals/features/school/attendance/controller"
	sessionController "tutorhub_backend/internals/features/school/sessions/controller"
	sessionService "tutorhub_backend/internals/features/school/sessions/service"
)

// SessionRoutes: lifecycle sesi + kehadiran per sesi (group /api/a).
func SessionRoutes(r fiber.Router, db *gorm.DB, svc *sessionService.SessionService, notifier notifService.Notifier, policy configs.Policy) {
	sessCtl := sessionController.NewClassSessionController(db, svc)
	attCtl := attendanceController.NewAttendanceController(db, notifier, policy)

	sessions := r.Group("/class-sessions")
	sessions.Post("/", sessCtl.Create)
	sessions.Get("/", sessCtl.List)
	sessions.Get("/:id", sessCtl.GetByID)

	sessions.Post("/:id/activate", sessCtl.Activate)
	sessions.Post("/:id/complete", sessCtl.Complete)
	sessions.Post("/:id/cancel", sessCtl.Cancel)
	sessions.Post("/:id/reschedule", sessCtl.Reschedule)
	sessions.Post("/:id/pause", sessCtl.Pause)
	sessions.Post("/:id/resume", sessCtl.Resume)

	sessions.Get("/:id/attendance", attCtl.ListBySession)
	sessions.Patch("/:id/attendance", attCtl.Override)
}
