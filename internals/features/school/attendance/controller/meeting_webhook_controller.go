// file: internals/features/school/attendance/controller/meeting_webhook_controller.go
package controller

import (
	"crypto/subtle"
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	"tutorhub_backend/internals/features/school/attendance/dto"
	"tutorhub_backend/internals/features/school/attendance/service"
	helper "tutorhub_backend/internals/helpers"
)

/*
=========================================================

	Webhook dari meeting provider (join/left peserta).
	Endpoint publik — diverifikasi lewat shared secret header,
	bukan JWT. Event yang sama boleh dikirim ulang oleh provider;
	intake append-only + aggregator idempoten menanganinya.
	=========================================================
*/
type MeetingWebhookController struct {
	DB       *gorm.DB
	Policy   configs.Policy
	Secret   string
	Validate *validator.Validate
}

func NewMeetingWebhookController(db *gorm.DB, policy configs.Policy) *MeetingWebhookController {
	return &MeetingWebhookController{
		DB:       db,
		Policy:   policy,
		Secret:   configs.GetEnv("MEETING_WEBHOOK_SECRET", ""),
		Validate: validator.New(),
	}
}

// POST /api/public/webhooks/meeting-events
func (ctl *MeetingWebhookController) HandleMeetingEvent(c *fiber.Ctx) error {
	if ctl.Secret != "" {
		got := c.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(ctl.Secret)) != 1 {
			return helper.JsonError(c, fiber.StatusUnauthorized, "webhook secret tidak valid")
		}
	}

	var req dto.MeetingEventRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}
	req.Normalize()
	if err := ctl.Validate.Struct(req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	}

	err := service.RecordMeetingEvent(ctl.DB.WithContext(c.Context()), service.MeetingEventInput{
		SessionID:     req.SessionID,
		ParticipantID: req.ParticipantID,
		Kind:          req.Kind(),
		OccurredAt:    req.OccurredAt,
		SourceRef:     req.SourceRef,
		RawPayload:    c.Body(),
	}, ctl.Policy)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			// provider retry tidak akan membantu — balas 200 supaya tidak spam
			log.Printf("[WEBHOOK] meeting event untuk sesi tak dikenal: %s", req.SessionID)
			return helper.JsonOK(c, "Event diabaikan (sesi tidak dikenal)", nil)
		}
		log.Printf("[WEBHOOK ERROR] meeting event session=%s: %v", req.SessionID, err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal memproses event")
	}

	return helper.JsonOK(c, "Event diterima", nil)
}
