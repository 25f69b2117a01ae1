// file: internals/features/finance/subscriptions/service/renewal.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	subscriptionModel "tutorhub_backend/internals/features/finance/subscriptions/model"
	notifierService "tutorhub_backend/internals/features/home/notifications/service"
	helper "tutorhub_backend/internals/helpers"
)

/*
=========================================================

	Renewal Engine.

	Ladder: active → retry₁ → retry₂ → grace → suspended.
	Charge sukses di tahap mana pun mengembalikan ke active dengan
	tanggal diperpanjang & quota di-restore. Seluruh progress retry
	dipersist di baris subscription (bukan timer in-memory) supaya
	restart proses tidak kehilangan state.

	Charge gateway SELALU di luar lock; penulisan state re-read +
	re-lock supaya cancel yang terjadi selama network round trip
	tidak tertimpa (lost update).
	=========================================================
*/
type RenewalService struct {
	DB       *gorm.DB
	Gateway  PaymentGateway
	Notifier notifierService.Notifier
	Policy   configs.Policy
}

func NewRenewalService(db *gorm.DB, gateway PaymentGateway, notifier notifierService.Notifier, policy configs.Policy) *RenewalService {
	return &RenewalService{DB: db, Gateway: gateway, Notifier: notifier, Policy: policy}
}

// ProcessDueRenewals: entry point harian. Mengambil subscription yang jatuh
// tempo dan men-charge satu per satu; kegagalan satu subscription tidak
// pernah memblokir subscription lain (log + lanjut).
func (s *RenewalService) ProcessDueRenewals(ctx context.Context, now time.Time) (int, error) {
	var due []subscriptionModel.SubscriptionModel
	if err := s.DB.WithContext(ctx).
		Where("subscription_auto_renew = ?", true).
		Where("subscription_status IN ?", []subscriptionModel.SubscriptionStatus{
			subscriptionModel.SubscriptionActive,
			subscriptionModel.SubscriptionGrace,
		}).
		Where("subscription_billing_cycle <> ?", subscriptionModel.BillingLifetime).
		Where("subscription_next_billing_date IS NOT NULL AND subscription_next_billing_date <= ?", now).
		Limit(500).
		Find(&due).Error; err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		if err := s.renewOne(ctx, &due[i], now); err != nil {
			log.Printf("[RENEWAL ERROR] subscription=%s: %v", due[i].SubscriptionID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *RenewalService) renewOne(ctx context.Context, sub *subscriptionModel.SubscriptionModel, now time.Time) error {
	if sub.SubscriptionPaymentToken == nil || *sub.SubscriptionPaymentToken == "" {
		// tanpa payment method tersimpan, perlakukan seperti decline
		return s.applyFailure(ctx, sub.SubscriptionID, "no stored payment method", now)
	}

	// order id membawa uuid subscription utuh supaya webhook settlement
	// asinkron bisa resolve kembali ke subscription-nya
	orderID := fmt.Sprintf("RENEW-%s-%d", sub.SubscriptionID, now.Unix())

	// charge DI LUAR lock — tidak boleh pegang row lock selama network call
	result, err := s.Gateway.Charge(ctx, *sub.SubscriptionPaymentToken, orderID,
		sub.SubscriptionPriceAmount, sub.SubscriptionPriceCurrency)
	if err != nil {
		return err
	}

	if result.Success {
		return s.applySuccess(ctx, sub.SubscriptionID, orderID, now)
	}
	return s.applyFailure(ctx, sub.SubscriptionID, result.FailureReason, now)
}

// ApplyChargeResult: jalur webhook PaymentChargeResult dari gateway
// (settlement asinkron). Dipakai juga untuk aktivasi pending → active
// saat pembayaran pertama terkonfirmasi.
func (s *RenewalService) ApplyChargeResult(ctx context.Context, subscriptionID uuid.UUID, success bool, reference, failureReason string, now time.Time) error {
	if success {
		return s.applySuccess(ctx, subscriptionID, reference, now)
	}
	return s.applyFailure(ctx, subscriptionID, failureReason, now)
}

// applySuccess: re-lock + re-read, lalu perpanjang siklus & restore quota.
func (s *RenewalService) applySuccess(ctx context.Context, subscriptionID uuid.UUID, reference string, now time.Time) error {
	var snapshot subscriptionModel.SubscriptionModel

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub subscriptionModel.SubscriptionModel
		if err := helper.LockForUpdate(tx).
			Where("subscription_id = ?", subscriptionID).
			First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriptionNotFound
			}
			return err
		}

		// cancel paralel menang — jangan hidupkan lagi subscription terminal.
		// suspended juga: keluar dari suspended hanya lewat Reactivate,
		// settlement telat tidak boleh jadi jalan pintas.
		if sub.SubscriptionStatus.IsTerminal() ||
			sub.SubscriptionStatus == subscriptionModel.SubscriptionSuspended {
			log.Printf("[RENEWAL] subscription=%s sudah %s, hasil charge %s diabaikan",
				sub.SubscriptionID, sub.SubscriptionStatus, reference)
			snapshot = sub
			return nil
		}

		cycle := sub.SubscriptionBillingCycle
		if sub.SubscriptionStartDate == nil {
			sub.SubscriptionStartDate = &now
		}
		var end time.Time
		if sub.SubscriptionEndDate != nil && sub.SubscriptionEndDate.After(now) {
			end = cycle.Advance(*sub.SubscriptionEndDate)
		} else {
			end = cycle.Advance(now)
		}
		sub.SubscriptionEndDate = &end

		if cycle == subscriptionModel.BillingLifetime {
			sub.SubscriptionNextBillingDate = nil
		} else {
			next := end
			sub.SubscriptionNextBillingDate = &next
		}

		sub.SubscriptionStatus = subscriptionModel.SubscriptionActive
		sub.SubscriptionSessionsRemaining = sub.SubscriptionTotalSessions
		sub.SubscriptionRenewalAttemptCount = 0
		sub.SubscriptionGraceStartedAt = nil
		sub.SubscriptionLastOrderID = &reference

		if err := tx.Save(&sub).Error; err != nil {
			return err
		}
		snapshot = sub
		return nil
	})
	if err != nil {
		return err
	}

	if snapshot.SubscriptionStatus == subscriptionModel.SubscriptionActive {
		log.Printf("[RENEWAL] subscription=%s charge sukses ref=%s, active s/d %s",
			snapshot.SubscriptionID, reference, snapshot.SubscriptionEndDate.Format(time.RFC3339))
		_ = s.Notifier.Send(ctx, notifierService.NotifyInput{
			SchoolID:    snapshot.SubscriptionSchoolID,
			RecipientID: snapshot.SubscriptionStudentID,
			Kind:        "renewal_success",
			Title:       "Perpanjangan berhasil",
			Body:        "Langganan kamu berhasil diperpanjang.",
			Tags:        []string{"billing", "renewal"},
			Context:     map[string]any{"subscription_id": snapshot.SubscriptionID, "reference": reference},
		})
	}
	return nil
}

// applyFailure: increment attempt + backoff, attempt ke-MaxRenewalAttempts → grace.
func (s *RenewalService) applyFailure(ctx context.Context, subscriptionID uuid.UUID, reason string, now time.Time) error {
	var snapshot subscriptionModel.SubscriptionModel

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub subscriptionModel.SubscriptionModel
		if err := helper.LockForUpdate(tx).
			Where("subscription_id = ?", subscriptionID).
			First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubscriptionNotFound
			}
			return err
		}

		if sub.SubscriptionStatus.IsTerminal() || sub.SubscriptionStatus == subscriptionModel.SubscriptionSuspended {
			snapshot = sub
			return nil
		}

		sub.SubscriptionRenewalAttemptCount++

		switch {
		case sub.SubscriptionStatus == subscriptionModel.SubscriptionGrace:
			// selama grace tetap dicoba harian; suspensi urusan ExpireGracePeriods
			next := now.Add(24 * time.Hour)
			sub.SubscriptionNextBillingDate = &next

		case sub.SubscriptionRenewalAttemptCount >= s.Policy.MaxRenewalAttempts:
			sub.SubscriptionStatus = subscriptionModel.SubscriptionGrace
			sub.SubscriptionGraceStartedAt = &now
			next := now.Add(24 * time.Hour)
			sub.SubscriptionNextBillingDate = &next

		default:
			// attempt 1..N-1: backoff eksponensial dari policy (24h, 48h, ...)
			idx := sub.SubscriptionRenewalAttemptCount - 1
			hours := 24
			if idx < len(s.Policy.RetryBackoffHours) {
				hours = s.Policy.RetryBackoffHours[idx]
			}
			next := now.Add(time.Duration(hours) * time.Hour)
			sub.SubscriptionNextBillingDate = &next
		}

		if err := tx.Save(&sub).Error; err != nil {
			return err
		}
		snapshot = sub
		return nil
	})
	if err != nil {
		return err
	}

	if snapshot.SubscriptionStatus.IsTerminal() || snapshot.SubscriptionStatus == subscriptionModel.SubscriptionSuspended {
		return nil
	}

	log.Printf("[RENEWAL] subscription=%s charge gagal attempt=%d status=%s reason=%q",
		snapshot.SubscriptionID, snapshot.SubscriptionRenewalAttemptCount, snapshot.SubscriptionStatus, reason)

	kind := "renewal_failed"
	title := "Pembayaran perpanjangan gagal"
	body := "Pembayaran langganan kamu gagal, kami akan mencoba lagi."
	if snapshot.SubscriptionStatus == subscriptionModel.SubscriptionGrace {
		kind = "renewal_grace"
		title = "Langganan masuk masa tenggang"
		body = "Pembayaran berulang kali gagal. Perbarui metode pembayaran sebelum masa tenggang habis."
	}
	_ = s.Notifier.Send(ctx, notifierService.NotifyInput{
		SchoolID:    snapshot.SubscriptionSchoolID,
		RecipientID: snapshot.SubscriptionStudentID,
		Kind:        kind,
		Title:       title,
		Body:        body,
		Tags:        []string{"billing", "renewal"},
		Context: map[string]any{
			"subscription_id": snapshot.SubscriptionID,
			"attempt":         snapshot.SubscriptionRenewalAttemptCount,
			"reason":          reason,
		},
	})
	return nil
}

// ExpireGracePeriods: job periodik terpisah — grace melewati window → suspended.
// Suspensi memblokir penjadwalan sesi baru; sesi yang sudah terjadwal tidak
// dibatalkan retroaktif.
func (s *RenewalService) ExpireGracePeriods(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-time.Duration(s.Policy.GracePeriodDays) * 24 * time.Hour)

	var expired []subscriptionModel.SubscriptionModel
	if err := s.DB.WithContext(ctx).
		Where("subscription_status = ?", subscriptionModel.SubscriptionGrace).
		Where("subscription_grace_started_at IS NOT NULL AND subscription_grace_started_at <= ?", cutoff).
		Limit(500).
		Find(&expired).Error; err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		sub := &expired[i]
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var cur subscriptionModel.SubscriptionModel
			if err := helper.LockForUpdate(tx).
				Where("subscription_id = ?", sub.SubscriptionID).
				First(&cur).Error; err != nil {
				return err
			}
			// charge sukses bisa mendahului job ini — cek ulang di bawah lock
			if cur.SubscriptionStatus != subscriptionModel.SubscriptionGrace {
				return nil
			}
			return tx.Model(&subscriptionModel.SubscriptionModel{}).
				Where("subscription_id = ?", cur.SubscriptionID).
				Update("subscription_status", subscriptionModel.SubscriptionSuspended).Error
		})
		if err != nil {
			log.Printf("[RENEWAL ERROR] suspend subscription=%s: %v", sub.SubscriptionID, err)
			continue
		}

		count++
		log.Printf("[RENEWAL] subscription=%s grace habis → suspended", sub.SubscriptionID)
		_ = s.Notifier.Send(ctx, notifierService.NotifyInput{
			SchoolID:    sub.SubscriptionSchoolID,
			RecipientID: sub.SubscriptionStudentID,
			Kind:        "renewal_suspended",
			Title:       "Langganan ditangguhkan",
			Body:        "Masa tenggang habis tanpa pembayaran. Langganan ditangguhkan.",
			Tags:        []string{"billing", "renewal"},
			Context:     map[string]any{"subscription_id": sub.SubscriptionID},
		})
	}
	return count, nil
}

// ExpireLapsed: subscription non-renewing yang melewati end_date → expired.
func (s *RenewalService) ExpireLapsed(ctx context.Context, now time.Time) (int, error) {
	res := s.DB.WithContext(ctx).
		Model(&subscriptionModel.SubscriptionModel{}).
		Where("subscription_status = ?", subscriptionModel.SubscriptionActive).
		Where("subscription_auto_renew = ?", false).
		Where("subscription_end_date IS NOT NULL AND subscription_end_date <= ?", now).
		Update("subscription_status", subscriptionModel.SubscriptionExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		log.Printf("[RENEWAL] %d subscription lewat end_date → expired", res.RowsAffected)
	}
	return int(res.RowsAffected), nil
}

// Reactivate: operasi manual di luar retry ladder — charge token baru,
// suspended → active dengan siklus fresh.
func (s *RenewalService) Reactivate(ctx context.Context, subscriptionID uuid.UUID, paymentToken string, now time.Time) (*subscriptionModel.SubscriptionModel, error) {
	// precondition check dulu (tanpa lock) supaya tidak charge percuma
	var sub subscriptionModel.SubscriptionModel
	if err := s.DB.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if sub.SubscriptionStatus != subscriptionModel.SubscriptionSuspended {
		return nil, ErrNotSuspended
	}

	orderID := fmt.Sprintf("REACT-%s-%d", subscriptionID.String()[:8], now.Unix())
	result, err := s.Gateway.Charge(ctx, paymentToken, orderID,
		sub.SubscriptionPriceAmount, sub.SubscriptionPriceCurrency)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("%w: %s", ErrChargeFailed, result.FailureReason)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur subscriptionModel.SubscriptionModel
		if err := helper.LockForUpdate(tx).
			Where("subscription_id = ?", subscriptionID).
			First(&cur).Error; err != nil {
			return err
		}
		if cur.SubscriptionStatus != subscriptionModel.SubscriptionSuspended {
			return ErrNotSuspended
		}

		end := cur.SubscriptionBillingCycle.Advance(now)
		cur.SubscriptionStatus = subscriptionModel.SubscriptionActive
		cur.SubscriptionStartDate = &now
		cur.SubscriptionEndDate = &end
		if cur.SubscriptionBillingCycle == subscriptionModel.BillingLifetime {
			cur.SubscriptionNextBillingDate = nil
		} else {
			next := end
			cur.SubscriptionNextBillingDate = &next
		}
		cur.SubscriptionSessionsRemaining = cur.SubscriptionTotalSessions
		cur.SubscriptionRenewalAttemptCount = 0
		cur.SubscriptionGraceStartedAt = nil
		cur.SubscriptionPaymentToken = &paymentToken
		cur.SubscriptionLastOrderID = &result.Reference

		if err := tx.Save(&cur).Error; err != nil {
			return err
		}
		sub = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[RENEWAL] subscription=%s reactivated ref=%s", sub.SubscriptionID, result.Reference)
	_ = s.Notifier.Send(ctx, notifierService.NotifyInput{
		SchoolID:    sub.SubscriptionSchoolID,
		RecipientID: sub.SubscriptionStudentID,
		Kind:        "renewal_reactivated",
		Title:       "Langganan aktif kembali",
		Body:        "Pembayaran diterima, langganan kamu aktif kembali.",
		Tags:        []string{"billing", "renewal"},
		Context:     map[string]any{"subscription_id": sub.SubscriptionID, "reference": result.Reference},
	})
	return &sub, nil
}
