// file: internals/features/home/notifications/controller/notification_controller.go
package controller

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tutorhub_backend/internals/features/home/notifications/model"
	helper "tutorhub_backend/internals/helpers"
	helperAuth "tutorhub_backend/internals/helpers/auth"
)

type NotificationController struct {
	DB *gorm.DB
}

func NewNotificationController(db *gorm.DB) *NotificationController {
	return &NotificationController{DB: db}
}

// GET /api/u/notifications — notifikasi milik user yang login
func (ctl *NotificationController) ListMine(c *fiber.Ctx) error {
	userID, err := helperAuth.GetUserIDFromToken(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
	}

	paging := helper.ResolvePaging(c, 20, 100)

	q := ctl.DB.WithContext(c.Context()).
		Model(&model.NotificationModel{}).
		Where("notification_recipient_id = ?", userID)

	if kind := c.Query("kind"); kind != "" {
		q = q.Where("notification_kind = ?", kind)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal menghitung data")
	}

	var rows []model.NotificationModel
	if err := q.
		Order("notification_created_at DESC").
		Limit(paging.PerPage).
		Offset(paging.Offset).
		Find(&rows).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal mengambil data")
	}

	return helper.JsonList(c, "Daftar notifikasi", rows,
		helper.BuildPaginationFromPage(total, paging.Page, paging.PerPage))
}
