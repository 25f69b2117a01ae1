package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
=========================================================

	Enums
	=========================================================
*/
type SubscriptionStatus string

const (
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionGrace     SubscriptionStatus = "grace"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCompleted SubscriptionStatus = "completed"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// IsTerminal: completed/cancelled/expired tidak bisa diproses renewal lagi.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionCompleted || s == SubscriptionCancelled || s == SubscriptionExpired
}

// AllowsScheduling: hanya status ini yang boleh dipakai untuk jadwal sesi baru.
func (s SubscriptionStatus) AllowsScheduling() bool {
	return s == SubscriptionActive || s == SubscriptionGrace
}

type BillingCycle string

const (
	BillingMonthly   BillingCycle = "monthly"
	BillingQuarterly BillingCycle = "quarterly"
	BillingYearly    BillingCycle = "yearly"
	BillingLifetime  BillingCycle = "lifetime" // sekali bayar, tanpa renewal
)

// Advance menggeser t satu siklus billing ke depan.
func (c BillingCycle) Advance(t time.Time) time.Time {
	switch c {
	case BillingMonthly:
		return t.AddDate(0, 1, 0)
	case BillingQuarterly:
		return t.AddDate(0, 3, 0)
	case BillingYearly:
		return t.AddDate(1, 0, 0)
	default:
		return t
	}
}

/*
=========================================================

	Model
	=========================================================
*/
type SubscriptionModel struct {
	// PK
	SubscriptionID uuid.UUID `gorm:"type:uuid;primaryKey;column:subscription_id" json:"subscription_id"`

	// Tenant guard
	SubscriptionSchoolID uuid.UUID `gorm:"type:uuid;not null;index;column:subscription_school_id" json:"subscription_school_id"`

	// Pemilik & plan
	SubscriptionStudentID uuid.UUID `gorm:"type:uuid;not null;index;column:subscription_student_id" json:"subscription_student_id"`
	SubscriptionPlanName  string    `gorm:"type:varchar(120);not null;column:subscription_plan_name" json:"subscription_plan_name"`

	// Quota sesi: remaining >= 0 selalu
	SubscriptionTotalSessions     int `gorm:"not null;column:subscription_total_sessions" json:"subscription_total_sessions"`
	SubscriptionSessionsRemaining int `gorm:"not null;default:0;column:subscription_sessions_remaining" json:"subscription_sessions_remaining"`

	// Billing
	SubscriptionBillingCycle  BillingCycle `gorm:"type:varchar(20);not null;column:subscription_billing_cycle" json:"subscription_billing_cycle"`
	SubscriptionPriceAmount   int64        `gorm:"not null;column:subscription_price_amount" json:"subscription_price_amount"`
	SubscriptionPriceCurrency string       `gorm:"type:varchar(10);not null;default:'IDR';column:subscription_price_currency" json:"subscription_price_currency"`

	// Lifecycle
	SubscriptionStatus    SubscriptionStatus `gorm:"type:varchar(20);not null;default:'pending';index;column:subscription_status" json:"subscription_status"`
	SubscriptionStartDate *time.Time         `gorm:"column:subscription_start_date" json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time         `gorm:"column:subscription_end_date" json:"subscription_end_date,omitempty"`

	// Renewal state (persisted, bukan timer in-memory)
	SubscriptionNextBillingDate     *time.Time `gorm:"index;column:subscription_next_billing_date" json:"subscription_next_billing_date,omitempty"`
	SubscriptionAutoRenew           bool       `gorm:"not null;default:true;column:subscription_auto_renew" json:"subscription_auto_renew"`
	SubscriptionRenewalAttemptCount int        `gorm:"not null;default:0;column:subscription_renewal_attempt_count" json:"subscription_renewal_attempt_count"`
	SubscriptionGraceStartedAt      *time.Time `gorm:"column:subscription_grace_started_at" json:"subscription_grace_started_at,omitempty"`

	// Payment method tersimpan (token di gateway, bukan PAN)
	SubscriptionPaymentToken *string `gorm:"type:varchar(255);column:subscription_payment_token" json:"-"`
	SubscriptionLastOrderID  *string `gorm:"type:varchar(120);column:subscription_last_order_id" json:"subscription_last_order_id,omitempty"`

	// Audit & soft delete
	SubscriptionCreatedAt time.Time      `gorm:"not null;autoCreateTime;column:subscription_created_at" json:"subscription_created_at"`
	SubscriptionUpdatedAt time.Time      `gorm:"not null;autoUpdateTime;column:subscription_updated_at" json:"subscription_updated_at"`
	SubscriptionDeletedAt gorm.DeletedAt `gorm:"column:subscription_deleted_at;index" json:"subscription_deleted_at,omitempty"`
}

func (SubscriptionModel) TableName() string { return "subscriptions" }

func (m *SubscriptionModel) BeforeCreate(tx *gorm.DB) error {
	if m.SubscriptionID == uuid.Nil {
		m.SubscriptionID = uuid.New()
	}
	if m.SubscriptionSchoolID == uuid.Nil {
		return fmt.Errorf("subscription_school_id is required")
	}
	if m.SubscriptionTotalSessions < 0 || m.SubscriptionSessionsRemaining < 0 {
		return fmt.Errorf("subscription session counts must not be negative")
	}
	return nil
}

func (m *SubscriptionModel) BeforeSave(tx *gorm.DB) error {
	// invariant: sessions_remaining tidak boleh negatif, apapun jalurnya
	if m.SubscriptionSessionsRemaining < 0 {
		return fmt.Errorf("subscription_sessions_remaining must not be negative")
	}
	return nil
}
