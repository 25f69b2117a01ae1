// file: internals/features/school/sessions/controller/class_session_controller.go
package controller

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"tutorhub_backend/internals/features/school/sessions/dto"
	"tutorhub_backend/internals/features/school/sessions/model"
	"tutorhub_backend/internals/features/school/sessions/service"
	helper "tutorhub_backend/internals/helpers"
	helperAuth "tutorhub_backend/internals/helpers/auth"
)

type ClassSessionController struct {
	DB       *gorm.DB
	Service  *service.SessionService
	Validate *validator.Validate
}

func NewClassSessionController(db *gorm.DB, svc *service.SessionService) *ClassSessionController {
	return &ClassSessionController{
		DB:       db,
		Service:  svc,
		Validate: validator.New(),
	}
}

// mapping error service → HTTP status
func sessionErrStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, service.ErrInvalidTransition):
		return fiber.StatusConflict, true
	case errors.Is(err, service.ErrPastSchedule),
		errors.Is(err, service.ErrNotReschedulable),
		errors.Is(err, service.ErrSchedulingBlocked):
		return fiber.StatusBadRequest, true
	}
	return 0, false
}

func (ctl *ClassSessionController) respondErr(c *fiber.Ctx, err error) error {
	if status, ok := sessionErrStatus(err); ok {
		return helper.JsonError(c, status, err.Error())
	}
	return helper.JsonError(c, fiber.StatusInternalServerError, "terjadi kesalahan internal")
}

/* =========================================================
   CREATE — POST /api/a/class-sessions
   ========================================================= */

func (ctl *ClassSessionController) Create(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	if err := helperAuth.EnsureTeacherOrAdmin(c); err != nil {
		return helper.JsonError(c, fiber.StatusForbidden, err.Error())
	}

	var req dto.CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	sess, err := ctl.Service.Schedule(c.Context(), service.ScheduleInput{
		SchoolID:        schoolID,
		Kind:            req.Kind,
		TeacherID:       req.TeacherID,
		SubscriptionID:  req.SubscriptionID,
		Title:           req.Title,
		ScheduledStart:  req.ScheduledStart,
		DurationMinutes: req.DurationMinutes,
	}, time.Now())
	if err != nil {
		return ctl.respondErr(c, err)
	}

	return helper.JsonCreated(c, "Sesi berhasil dijadwalkan", dto.FromModel(sess))
}

/* =========================================================
   LIST — GET /api/a/class-sessions?status=&page=&per_page=
   ========================================================= */

func (ctl *ClassSessionController) List(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}

	paging := helper.ResolvePaging(c, 20, 100)

	q := ctl.DB.WithContext(c.Context()).
		Model(&model.ClassSessionModel{}).
		Where("class_session_school_id = ?", schoolID)

	if st := c.Query("status"); st != "" {
		q = q.Where("class_session_status = ?", st)
	}
	if tid := c.Query("teacher_id"); tid != "" {
		teacherID, err := uuid.Parse(tid)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "teacher_id tidak valid")
		}
		q = q.Where("class_session_teacher_id = ?", teacherID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal menghitung data")
	}

	var rows []model.ClassSessionModel
	if err := q.
		Order("class_session_scheduled_start DESC").
		Limit(paging.PerPage).
		Offset(paging.Offset).
		Find(&rows).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengambil data")
	}

	return helper.JsonList(c, "Daftar sesi", dto.FromModels(rows),
		helper.BuildPaginationFromPage(total, paging.Page, paging.PerPage))
}

/* =========================================================
   DETAIL — GET /api/a/class-sessions/:id
   ========================================================= */

func (ctl *ClassSessionController) GetByID(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}

	var sess model.ClassSessionModel
	if err := ctl.DB.WithContext(c.Context()).
		Where("class_session_id = ? AND class_session_school_id = ?", id, schoolID).
		First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.JsonError(c, fiber.StatusNotFound, "sesi tidak ditemukan")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengambil data")
	}

	return helper.JsonOK(c, "Detail sesi", dto.FromModel(&sess))
}

/* =========================================================
   TRANSITIONS
   ========================================================= */

func (ctl *ClassSessionController) parseSessionID(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}
	return schoolID, id, nil
}

// POST /api/a/class-sessions/:id/activate
func (ctl *ClassSessionController) Activate(c *fiber.Ctx) error {
	schoolID, id, ferr := ctl.parseSessionID(c)
	if ferr != nil {
		return ferr
	}
	sess, err := ctl.Service.Activate(c.Context(), schoolID, id, time.Now())
	if err != nil {
		return ctl.respondErr(c, err)
	}
	return helper.JsonUpdated(c, "Sesi dimulai", dto.FromModel(sess))
}

// POST /api/a/class-sessions/:id/complete
func (ctl *ClassSessionController) Complete(c *fiber.Ctx) error {
	schoolID, id, ferr := ctl.parseSessionID(c)
	if ferr != nil {
		return ferr
	}

	var req dto.CompleteSessionRequest
	_ = c.BodyParser(&req) // body opsional

	endedAt := time.Now()
	if req.EndedAt != nil {
		endedAt = *req.EndedAt
	}

	sess, err := ctl.Service.Complete(c.Context(), schoolID, id, endedAt)
	if err != nil {
		return ctl.respondErr(c, err)
	}
	return helper.JsonUpdated(c, "Sesi selesai", dto.FromModel(sess))
}

// POST /api/a/class-sessions/:id/cancel
func (ctl *ClassSessionController) Cancel(c *fiber.Ctx) error {
	schoolID, id, ferr := ctl.parseSessionID(c)
	if ferr != nil {
		return ferr
	}
	actor, err := helperAuth.GetUserIDFromToken(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}

	var req dto.CancelSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}
	if err := ctl.Validate.Struct(req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	sess, err := ctl.Service.Cancel(c.Context(), schoolID, id, req.Reason, actor, time.Now())
	if err != nil {
		return ctl.respondErr(c, err)
	}
	return helper.JsonUpdated(c, "Sesi dibatalkan", dto.FromModel(sess))
}

// POST /api/a/class-sessions/:id/reschedule
func (ctl *ClassSessionController) Reschedule(c *fiber.Ctx) error {
	schoolID, id, ferr := ctl.parseSessionID(c)
	if ferr != nil {
		return ferr
	}

	var req dto.RescheduleSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}
	if err := ctl.Validate.Struct(req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	sess, err := ctl.Service.Reschedule(c.Context(), schoolID, id, req.NewStart, req.Reason, time.Now())
	if err != nil {
		return ctl.respondErr(c, err)
	}
	return helper.JsonUpdated(c, "Jadwal sesi diubah", dto.FromModel(sess))
}

// POST /api/a/class-sessions/:id/pause
func (ctl *ClassSessionController) Pause(c *fiber.Ctx) error {
	schoolID, id, ferr := ctl.parseSessionID(c)
	if ferr != nil {
		return ferr
	}
	sess, err := ctl.Service.Pause(c.Context(), schoolID, id)
	if err != nil {
		return ctl.respondErr(c, err)
	}
	return helper.JsonUpdated(c, "Sesi dijeda", dto.FromModel(sess))
}

// POST /api/a/class-sessions/:id/resume
func (ctl *ClassSessionController) Resume(c *fiber.Ctx) error {
	schoolID, id, ferr := ctl.parseSessionID(c)
	if ferr != nil {
		return ferr
	}
	sess, err := ctl.Service.Resume(c.Context(), schoolID, id)
	if err != nil {
		return ctl.respondErr(c, err)
	}
	return helper.JsonUpdated(c, "Sesi dilanjutkan", dto.FromModel(sess))
}
