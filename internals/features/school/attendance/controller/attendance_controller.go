// file: internals/features/school/attendance/controller/attendance_controller.go
package controller

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	notifService "tutorhub_backend/internals/features/home/notifications/service"
	"tutorhub_backend/internals/features/school/attendance/dto"
	"tutorhub_backend/internals/features/school/attendance/model"
	"tutorhub_backend/internals/features/school/attendance/service"
	helper "tutorhub_backend/internals/helpers"
	helperAuth "tutorhub_backend/internals/helpers/auth"
)

type AttendanceController struct {
	DB       *gorm.DB
	Notifier notifService.Notifier
	Policy   configs.Policy
	Validate *validator.Validate
}

func NewAttendanceController(db *gorm.DB, notifier notifService.Notifier, policy configs.Policy) *AttendanceController {
	return &AttendanceController{
		DB:       db,
		Notifier: notifier,
		Policy:   policy,
		Validate: validator.New(),
	}
}

/* =========================================================
   LIST PER SESI — GET /api/a/class-sessions/:id/attendance
   ========================================================= */

func (ctl *AttendanceController) ListBySession(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}

	var rows []model.AttendanceRecordModel
	if err := ctl.DB.WithContext(c.Context()).
		Where("attendance_record_school_id = ?", schoolID).
		Where("attendance_record_session_id = ?", sessionID).
		Order("attendance_record_created_at ASC").
		Find(&rows).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengambil data")
	}

	return helper.JsonOK(c, "Kehadiran sesi", dto.FromRecordModels(rows))
}

/* =========================================================
   MANUAL OVERRIDE — PATCH /api/a/class-sessions/:id/attendance
   ========================================================= */

func (ctl *AttendanceController) Override(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	if err := helperAuth.EnsureTeacherOrAdmin(c); err != nil {
		return helper.JsonError(c, fiber.StatusForbidden, err.Error())
	}
	actor, err := helperAuth.GetUserIDFromToken(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	sessionID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}

	var req dto.OverrideAttendanceRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	rec, err := service.OverrideAttendance(c.Context(), ctl.DB, ctl.Notifier, service.OverrideInput{
		SchoolID:      schoolID,
		SessionID:     sessionID,
		ParticipantID: req.ParticipantID,
		Status:        req.Status,
		JoinAt:        req.JoinAt,
		LeaveAt:       req.LeaveAt,
		Reason:        req.Reason,
		OverriddenBy:  actor,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return helper.JsonError(c, fiber.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidStatus):
			return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "terjadi kesalahan internal")
	}

	return helper.JsonUpdated(c, "Kehadiran dikoreksi", dto.FromRecordModel(rec))
}
