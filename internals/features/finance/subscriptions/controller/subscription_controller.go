// file: internals/features/finance/subscriptions/controller/subscription_controller.go
package controller

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"tutorhub_backend/internals/features/finance/subscriptions/dto"
	"tutorhub_backend/internals/features/finance/subscriptions/model"
	"tutorhub_backend/internals/features/finance/subscriptions/service"
	helper "tutorhub_backend/internals/helpers"
	helperAuth "tutorhub_backend/internals/helpers/auth"
)

type SubscriptionController struct {
	DB       *gorm.DB
	Renewal  *service.RenewalService
	Validate *validator.Validate
}

func NewSubscriptionController(db *gorm.DB, renewal *service.RenewalService) *SubscriptionController {
	return &SubscriptionController{
		DB:       db,
		Renewal:  renewal,
		Validate: validator.New(),
	}
}

func (ctl *SubscriptionController) findOwned(c *fiber.Ctx, schoolID, id uuid.UUID) (*model.SubscriptionModel, error) {
	var sub model.SubscriptionModel
	err := ctl.DB.WithContext(c.Context()).
		Where("subscription_id = ? AND subscription_school_id = ?", id, schoolID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

/* =========================================================
   CREATE — POST /api/a/subscriptions (status pending,
   aktif setelah pembayaran pertama via webhook)
   ========================================================= */

func (ctl *SubscriptionController) Create(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	if err := helperAuth.EnsureAdmin(c); err != nil {
		return helper.JsonError(c, fiber.StatusForbidden, err.Error())
	}

	var req dto.CreateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	sub := req.ToModel(schoolID)
	if err := ctl.DB.WithContext(c.Context()).Create(&sub).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal membuat subscription")
	}

	return helper.JsonCreated(c, "Subscription dibuat (menunggu pembayaran)", dto.FromModel(&sub))
}

/* =========================================================
   LIST — GET /api/a/subscriptions?status=&student_id=
   ========================================================= */

func (ctl *SubscriptionController) List(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}

	paging := helper.ResolvePaging(c, 20, 100)

	q := ctl.DB.WithContext(c.Context()).
		Model(&model.SubscriptionModel{}).
		Where("subscription_school_id = ?", schoolID)

	if st := c.Query("status"); st != "" {
		q = q.Where("subscription_status = ?", st)
	}
	if sid := c.Query("student_id"); sid != "" {
		studentID, err := uuid.Parse(sid)
		if err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "student_id tidak valid")
		}
		q = q.Where("subscription_student_id = ?", studentID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal menghitung data")
	}

	var rows []model.SubscriptionModel
	if err := q.
		Order("subscription_created_at DESC").
		Limit(paging.PerPage).
		Offset(paging.Offset).
		Find(&rows).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengambil data")
	}

	return helper.JsonList(c, "Daftar subscription", dto.FromModels(rows),
		helper.BuildPaginationFromPage(total, paging.Page, paging.PerPage))
}

/* =========================================================
   DETAIL — GET /api/a/subscriptions/:id
   ========================================================= */

func (ctl *SubscriptionController) GetByID(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}

	sub, err := ctl.findOwned(c, schoolID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.JsonError(c, fiber.StatusNotFound, "subscription tidak ditemukan")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengambil data")
	}

	return helper.JsonOK(c, "Detail subscription", dto.FromModel(sub))
}

/* =========================================================
   AUTO-RENEW TOGGLE — PATCH /api/a/subscriptions/:id/auto-renew
   ========================================================= */

func (ctl *SubscriptionController) SetAutoRenew(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}

	var req dto.SetAutoRenewRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}

	sub, err := ctl.findOwned(c, schoolID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.JsonError(c, fiber.StatusNotFound, "subscription tidak ditemukan")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengambil data")
	}
	if sub.SubscriptionStatus.IsTerminal() {
		return helper.JsonError(c, fiber.StatusConflict, "subscription sudah berakhir")
	}
	if sub.SubscriptionBillingCycle == model.BillingLifetime && req.AutoRenew {
		return helper.JsonError(c, fiber.StatusBadRequest, "subscription lifetime tidak punya renewal")
	}

	if err := ctl.DB.WithContext(c.Context()).
		Model(sub).
		Update("subscription_auto_renew", req.AutoRenew).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal menyimpan perubahan")
	}
	sub.SubscriptionAutoRenew = req.AutoRenew

	return helper.JsonUpdated(c, "Auto-renew diperbarui", dto.FromModel(sub))
}

/* =========================================================
   CANCEL — POST /api/a/subscriptions/:id/cancel
   ========================================================= */

func (ctl *SubscriptionController) Cancel(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}

	tx := ctl.DB.WithContext(c.Context()).Begin()
	if tx.Error != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal memulai transaksi")
	}
	defer tx.Rollback()

	var sub model.SubscriptionModel
	if err := helper.LockForUpdate(tx).
		Where("subscription_id = ? AND subscription_school_id = ?", id, schoolID).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.JsonError(c, fiber.StatusNotFound, "subscription tidak ditemukan")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengambil data")
	}
	if sub.SubscriptionStatus.IsTerminal() {
		return helper.JsonError(c, fiber.StatusConflict, "subscription sudah berakhir")
	}

	sub.SubscriptionStatus = model.SubscriptionCancelled
	sub.SubscriptionAutoRenew = false
	if err := tx.Save(&sub).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal menyimpan perubahan")
	}
	if err := tx.Commit().Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal menyimpan perubahan")
	}

	return helper.JsonUpdated(c, "Subscription dibatalkan", dto.FromModel(&sub))
}

/* =========================================================
   REACTIVATE — POST /api/a/subscriptions/:id/reactivate
   (hanya dari suspended, butuh pembayaran berhasil)
   ========================================================= */

func (ctl *SubscriptionController) Reactivate(c *fiber.Ctx) error {
	schoolID, err := helperAuth.ResolveSchoolIDFromContext(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id tidak valid")
	}

	var req dto.ReactivateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}
	if err := ctl.Validate.Struct(req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	// guard tenant sebelum menyentuh service
	if _, err := ctl.findOwned(c, schoolID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helper.JsonError(c, fiber.StatusNotFound, "subscription tidak ditemukan")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengambil data")
	}

	sub, err := ctl.Renewal.Reactivate(c.Context(), id, req.PaymentToken, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriptionNotFound):
			return helper.JsonError(c, fiber.StatusNotFound, "subscription tidak ditemukan")
		case errors.Is(err, service.ErrNotSuspended):
			return helper.JsonError(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrChargeFailed):
			return helper.JsonError(c, fiber.StatusPaymentRequired, "pembayaran ditolak")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengaktifkan kembali")
	}

	return helper.JsonUpdated(c, "Subscription aktif kembali", dto.FromModel(sub))
}

/* =========================================================
   QUOTA REVERSAL — POST /api/a/subscriptions/quota-reversal
   (audited; satu-satunya jalur mengembalikan quota sesi)
   ========================================================= */

func (ctl *SubscriptionController) ReverseQuota(c *fiber.Ctx) error {
	if _, err := helperAuth.ResolveSchoolIDFromContext(c); err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}
	if err := helperAuth.EnsureAdmin(c); err != nil {
		return helper.JsonError(c, fiber.StatusForbidden, err.Error())
	}
	actor, err := helperAuth.GetUserIDFromToken(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}

	var req dto.ReverseQuotaRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}
	if err := ctl.Validate.Struct(req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	tx := ctl.DB.WithContext(c.Context()).Begin()
	if tx.Error != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal memulai transaksi")
	}
	defer tx.Rollback()

	if err := service.ReverseQuota(tx, req.SessionID, req.Reason, actor); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return helper.JsonError(c, fiber.StatusNotFound, "sesi tidak ditemukan")
		case errors.Is(err, service.ErrQuotaNotCounted):
			return helper.JsonError(c, fiber.StatusConflict, "quota sesi belum pernah dihitung")
		case errors.Is(err, service.ErrSubscriptionNotFound):
			return helper.JsonError(c, fiber.StatusConflict, "sesi tidak terikat subscription")
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal melakukan reversal")
	}
	if err := tx.Commit().Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal menyimpan perubahan")
	}

	return helper.JsonOK(c, "Quota sesi dikembalikan", nil)
}
