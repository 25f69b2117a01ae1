package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	m "tutorhub_backend/internals/features/finance/subscriptions/model"
)

/* =========================================================
   CREATE
   ========================================================= */

type CreateSubscriptionRequest struct {
	StudentID uuid.UUID `json:"subscription_student_id" validate:"required"`
	PlanName  string    `json:"subscription_plan_name" validate:"required,min=2,max=120"`

	TotalSessions int `json:"subscription_total_sessions" validate:"required,min=1,max=1000"`

	BillingCycle  m.BillingCycle `json:"subscription_billing_cycle" validate:"required,oneof=monthly quarterly yearly lifetime"`
	PriceAmount   int64          `json:"subscription_price_amount" validate:"required,min=0"`
	PriceCurrency string         `json:"subscription_price_currency" validate:"omitempty,len=3"`

	AutoRenew    *bool   `json:"subscription_auto_renew"`
	PaymentToken *string `json:"subscription_payment_token" validate:"omitempty,max=255"`
}

func (r *CreateSubscriptionRequest) Normalize() {
	r.PlanName = strings.TrimSpace(r.PlanName)
	r.PriceCurrency = strings.ToUpper(strings.TrimSpace(r.PriceCurrency))
	if r.PriceCurrency == "" {
		r.PriceCurrency = "IDR"
	}
}

func (r CreateSubscriptionRequest) ToModel(schoolID uuid.UUID) m.SubscriptionModel {
	autoRenew := true
	if r.AutoRenew != nil {
		autoRenew = *r.AutoRenew
	}
	// lifetime tidak pernah di-renew
	if r.BillingCycle == m.BillingLifetime {
		autoRenew = false
	}

	return m.SubscriptionModel{
		SubscriptionSchoolID:          schoolID,
		SubscriptionStudentID:         r.StudentID,
		SubscriptionPlanName:          r.PlanName,
		SubscriptionTotalSessions:     r.TotalSessions,
		SubscriptionSessionsRemaining: r.TotalSessions,
		SubscriptionBillingCycle:      r.BillingCycle,
		SubscriptionPriceAmount:       r.PriceAmount,
		SubscriptionPriceCurrency:     r.PriceCurrency,
		SubscriptionStatus:            m.SubscriptionPending,
		SubscriptionAutoRenew:         autoRenew,
		SubscriptionPaymentToken:      r.PaymentToken,
	}
}

/* =========================================================
   MUTATIONS
   ========================================================= */

type SetAutoRenewRequest struct {
	AutoRenew bool `json:"subscription_auto_renew"`
}

type ReactivateSubscriptionRequest struct {
	PaymentToken string `json:"subscription_payment_token" validate:"required,max=255"`
}

type ReverseQuotaRequest struct {
	SessionID uuid.UUID `json:"class_session_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,min=3,max=500"`
}

/* =========================================================
   RESPONSE
   ========================================================= */

type SubscriptionResponse struct {
	ID        uuid.UUID `json:"subscription_id"`
	SchoolID  uuid.UUID `json:"subscription_school_id"`
	StudentID uuid.UUID `json:"subscription_student_id"`
	PlanName  string    `json:"subscription_plan_name"`

	TotalSessions     int `json:"subscription_total_sessions"`
	SessionsRemaining int `json:"subscription_sessions_remaining"`

	BillingCycle  m.BillingCycle `json:"subscription_billing_cycle"`
	PriceAmount   int64          `json:"subscription_price_amount"`
	PriceCurrency string         `json:"subscription_price_currency"`

	Status    m.SubscriptionStatus `json:"subscription_status"`
	StartDate *time.Time           `json:"subscription_start_date,omitempty"`
	EndDate   *time.Time           `json:"subscription_end_date,omitempty"`

	NextBillingDate     *time.Time `json:"subscription_next_billing_date,omitempty"`
	AutoRenew           bool       `json:"subscription_auto_renew"`
	RenewalAttemptCount int        `json:"subscription_renewal_attempt_count"`
	GraceStartedAt      *time.Time `json:"subscription_grace_started_at,omitempty"`

	CreatedAt time.Time `json:"subscription_created_at"`
	UpdatedAt time.Time `json:"subscription_updated_at"`
}

func FromModel(s *m.SubscriptionModel) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                  s.SubscriptionID,
		SchoolID:            s.SubscriptionSchoolID,
		StudentID:           s.SubscriptionStudentID,
		PlanName:            s.SubscriptionPlanName,
		TotalSessions:       s.SubscriptionTotalSessions,
		SessionsRemaining:   s.SubscriptionSessionsRemaining,
		BillingCycle:        s.SubscriptionBillingCycle,
		PriceAmount:         s.SubscriptionPriceAmount,
		PriceCurrency:       s.SubscriptionPriceCurrency,
		Status:              s.SubscriptionStatus,
		StartDate:           s.SubscriptionStartDate,
		EndDate:             s.SubscriptionEndDate,
		NextBillingDate:     s.SubscriptionNextBillingDate,
		AutoRenew:           s.SubscriptionAutoRenew,
		RenewalAttemptCount: s.SubscriptionRenewalAttemptCount,
		GraceStartedAt:      s.SubscriptionGraceStartedAt,
		CreatedAt:           s.SubscriptionCreatedAt,
		UpdatedAt:           s.SubscriptionUpdatedAt,
	}
}

func FromModels(list []m.SubscriptionModel) []SubscriptionResponse {
	out := make([]SubscriptionResponse, 0, len(list))
	for i := range list {
		out = append(out, FromModel(&list[i]))
	}
	return out
}
