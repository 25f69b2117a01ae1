// file: internals/features/finance/subscriptions/controller/payment_webhook_controller.go
package controller

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	"tutorhub_backend/internals/features/finance/subscriptions/model"
	"tutorhub_backend/internals/features/finance/subscriptions/service"
	helper "tutorhub_backend/internals/helpers"
)

/*
=========================================================

	Webhook notifikasi pembayaran dari Midtrans.
	Dipakai untuk settlement asinkron renewal DAN aktivasi
	pembayaran pertama (pending → active). Midtrans bisa
	mengirim notifikasi yang sama berkali-kali — ApplyChargeResult
	idempoten terhadap status terminal.
	=========================================================
*/
type PaymentWebhookController struct {
	DB        *gorm.DB
	Renewal   *service.RenewalService
	ServerKey string
}

func NewPaymentWebhookController(db *gorm.DB, renewal *service.RenewalService) *PaymentWebhookController {
	return &PaymentWebhookController{
		DB:        db,
		Renewal:   renewal,
		ServerKey: configs.GetEnv("MIDTRANS_SERVER_KEY", ""),
	}
}

// verifikasi signature_key midtrans: sha512(order_id+status_code+gross_amount+server_key)
func (ctl *PaymentWebhookController) validSignature(body map[string]interface{}) bool {
	if ctl.ServerKey == "" {
		return true // dev mode tanpa key
	}
	orderID, _ := body["order_id"].(string)
	statusCode, _ := body["status_code"].(string)
	grossAmount, _ := body["gross_amount"].(string)
	signature, _ := body["signature_key"].(string)

	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + ctl.ServerKey))
	return hex.EncodeToString(sum[:]) == signature
}

// POST /api/public/webhooks/payment
func (ctl *PaymentWebhookController) HandlePaymentNotification(c *fiber.Ctx) error {
	var body map[string]interface{}
	if err := c.BodyParser(&body); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak valid")
	}

	orderID, ok1 := body["order_id"].(string)
	status, ok2 := body["transaction_status"].(string)
	if !ok1 || !ok2 {
		log.Println("[WEBHOOK ERROR] payload midtrans tidak lengkap:", body)
		return helper.JsonError(c, fiber.StatusBadRequest, "payload tidak lengkap")
	}
	if !ctl.validSignature(body) {
		return helper.JsonError(c, fiber.StatusUnauthorized, "signature tidak valid")
	}

	log.Printf("[WEBHOOK] midtrans order=%s status=%s", orderID, status)

	sub, err := ctl.resolveSubscription(c, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// retry midtrans tidak akan membantu — balas 200
			log.Printf("[WEBHOOK] order %s tidak terkait subscription manapun", orderID)
			return helper.JsonOK(c, "Notifikasi diabaikan (order tidak dikenal)", nil)
		}
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal memproses notifikasi")
	}

	now := time.Now()
	switch status {
	case "capture", "settlement":
		err = ctl.Renewal.ApplyChargeResult(c.Context(), sub.SubscriptionID, true, orderID, "", now)
	case "deny", "cancel", "expire", "failure":
		err = ctl.Renewal.ApplyChargeResult(c.Context(), sub.SubscriptionID, false, orderID, status, now)
	default:
		// pending dkk. — tunggu notifikasi berikutnya
		log.Printf("[WEBHOOK] status %s tidak diproses untuk order %s", status, orderID)
		return helper.JsonOK(c, "Status belum final", nil)
	}
	if err != nil {
		log.Printf("[WEBHOOK ERROR] gagal apply charge result order=%s: %v", orderID, err)
		return helper.JsonError(c, fiber.StatusInternalServerError, "gagal memproses notifikasi")
	}

	return helper.JsonOK(c, "Notifikasi diproses", nil)
}

// resolveSubscription: cocokkan order_id ke subscription — by last_order_id,
// atau parse format order internal (RENEW-<uuid>-<ts> / SUB-<uuid>).
func (ctl *PaymentWebhookController) resolveSubscription(c *fiber.Ctx, orderID string) (*model.SubscriptionModel, error) {
	var sub model.SubscriptionModel
	err := ctl.DB.WithContext(c.Context()).
		Where("subscription_last_order_id = ?", orderID).
		First(&sub).Error
	if err == nil {
		return &sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	parts := strings.Split(orderID, "-")
	// uuid sendiri terdiri dari 5 segmen
	if len(parts) < 6 {
		return nil, gorm.ErrRecordNotFound
	}
	id, perr := uuid.Parse(strings.Join(parts[1:6], "-"))
	if perr != nil {
		return nil, gorm.ErrRecordNotFound
	}

	if err := ctl.DB.WithContext(c.Context()).
		Where("subscription_id = ?", id).
		First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}
