// file: internals/features/finance/subscriptions/service/quota.go
package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	subscriptionModel "tutorhub_backend/internals/features/finance/subscriptions/model"
	sessionModel "tutorhub_backend/internals/features/school/sessions/model"
	helper "tutorhub_backend/internals/helpers"
)

/*
=========================================================

	Quota Counter.

	Kontrak: satu sesi quota-counted menurunkan sessions_remaining
	TEPAT SEKALI, berapa kali pun ApplyQuota dipanggil (termasuk paralel).
	Pola: lock baris sesi + baris subscription FOR UPDATE di dalam
	transaksi pemanggil, re-check flag di bawah lock, baru decrement.
	Tidak ada network call selama lock dipegang.
	=========================================================
*/

// ApplyQuota dipanggil di dalam tx yang sama dengan complete() sesi,
// atau oleh background job yang di-retry. sessionID selalu tenant-scoped
// oleh pemanggil.
func ApplyQuota(tx *gorm.DB, sessionID uuid.UUID) error {
	// 1) Lock sesi, re-check flag di bawah lock (double-check)
	var s sessionModel.ClassSessionModel
	if err := helper.LockForUpdate(tx).
		Where("class_session_id = ?", sessionID).
		First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("session %s not found", sessionID)
		}
		return err
	}

	if s.ClassSessionQuotaCounted {
		// sudah dihitung → no-op sukses
		return nil
	}
	if !s.ClassSessionKind.CountsTowardQuota() || s.ClassSessionSubscriptionID == nil {
		// course session: tidak pernah dihitung quota
		return nil
	}

	// 2) Lock subscription pemilik
	var sub subscriptionModel.SubscriptionModel
	if err := helper.LockForUpdate(tx).
		Where("subscription_id = ?", *s.ClassSessionSubscriptionID).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubscriptionNotFound
		}
		return err
	}

	markCounted := func() error {
		return tx.Model(&sessionModel.ClassSessionModel{}).
			Where("class_session_id = ?", s.ClassSessionID).
			Update("class_session_quota_counted", true).Error
	}

	// 3) Subscription tidak active → tetap tandai counted (hindari reprocessing),
	//    tapi JANGAN decrement; ini pelanggaran policy, bukan error caller.
	if sub.SubscriptionStatus != subscriptionModel.SubscriptionActive {
		log.Printf("[QUOTA POLICY] session=%s counted tanpa decrement: subscription=%s status=%s",
			s.ClassSessionID, sub.SubscriptionID, sub.SubscriptionStatus)
		return markCounted()
	}

	// 4) Floor di 0: decrement di bawah 0 = anomali data → monitoring, bukan caller.
	if sub.SubscriptionSessionsRemaining <= 0 {
		log.Printf("[QUOTA_INCONSISTENCY] session=%s subscription=%s remaining=%d: decrement akan negatif",
			s.ClassSessionID, sub.SubscriptionID, sub.SubscriptionSessionsRemaining)
		return markCounted()
	}

	if err := tx.Model(&subscriptionModel.SubscriptionModel{}).
		Where("subscription_id = ?", sub.SubscriptionID).
		Update("subscription_sessions_remaining", gorm.Expr("subscription_sessions_remaining - 1")).Error; err != nil {
		return err
	}

	// quota habis & tidak auto-renew → subscription selesai
	if sub.SubscriptionSessionsRemaining == 1 && !sub.SubscriptionAutoRenew {
		if err := tx.Model(&subscriptionModel.SubscriptionModel{}).
			Where("subscription_id = ?", sub.SubscriptionID).
			Update("subscription_status", subscriptionModel.SubscriptionCompleted).Error; err != nil {
			return err
		}
		log.Printf("[QUOTA] subscription=%s quota habis → completed", sub.SubscriptionID)
	}

	return markCounted()
}

// ReverseQuota: operasi reversal teraudit — satu-satunya jalur yang boleh
// me-reset quota_counted. Dipanggil dalam transaksi.
func ReverseQuota(tx *gorm.DB, sessionID uuid.UUID, reason string, actor uuid.UUID) error {
	var s sessionModel.ClassSessionModel
	if err := helper.LockForUpdate(tx).
		Where("class_session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return err
	}

	if !s.ClassSessionQuotaCounted {
		return ErrQuotaNotCounted
	}
	if s.ClassSessionSubscriptionID == nil {
		return ErrSubscriptionNotFound
	}

	var sub subscriptionModel.SubscriptionModel
	if err := helper.LockForUpdate(tx).
		Where("subscription_id = ?", *s.ClassSessionSubscriptionID).
		First(&sub).Error; err != nil {
		return err
	}

	// restore satu sesi, jangan melebihi total plan
	if sub.SubscriptionSessionsRemaining < sub.SubscriptionTotalSessions {
		if err := tx.Model(&subscriptionModel.SubscriptionModel{}).
			Where("subscription_id = ?", sub.SubscriptionID).
			Update("subscription_sessions_remaining", gorm.Expr("subscription_sessions_remaining + 1")).Error; err != nil {
			return err
		}
	}

	if err := tx.Model(&sessionModel.ClassSessionModel{}).
		Where("class_session_id = ?", s.ClassSessionID).
		Update("class_session_quota_counted", false).Error; err != nil {
		return err
	}

	log.Printf("[QUOTA_REVERSAL] session=%s subscription=%s actor=%s reason=%q",
		s.ClassSessionID, sub.SubscriptionID, actor, reason)
	return nil
}
