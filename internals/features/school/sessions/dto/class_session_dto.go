package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	m "tutorhub_backend/internals/features/school/sessions/model"
)

/* =========================================================
   CREATE (schedule)
   ========================================================= */

type CreateSessionRequest struct {
	Kind           m.SessionKind `json:"class_session_kind" validate:"required,oneof=private group course"`
	TeacherID      uuid.UUID     `json:"class_session_teacher_id" validate:"required"`
	SubscriptionID *uuid.UUID    `json:"class_session_subscription_id"`
	Title          *string       `json:"class_session_title" validate:"omitempty,max=255"`

	ScheduledStart  time.Time `json:"class_session_scheduled_start" validate:"required"`
	DurationMinutes int       `json:"class_session_duration_minutes" validate:"required,min=10,max=480"`
}

func (r *CreateSessionRequest) Normalize() {
	if r.Title != nil {
		v := strings.TrimSpace(*r.Title)
		if v == "" {
			r.Title = nil
		} else {
			r.Title = &v
		}
	}
}

/* =========================================================
   RESCHEDULE / CANCEL
   ========================================================= */

type RescheduleSessionRequest struct {
	NewStart time.Time `json:"class_session_scheduled_start" validate:"required"`
	Reason   string    `json:"reason" validate:"required,min=3,max=500"`
}

type CancelSessionRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type CompleteSessionRequest struct {
	// opsional — default now() di controller
	EndedAt *time.Time `json:"class_session_ended_at"`
}

/* =========================================================
   RESPONSE
   ========================================================= */

type SessionResponse struct {
	ID             uuid.UUID     `json:"class_session_id"`
	SchoolID       uuid.UUID     `json:"class_session_school_id"`
	Kind           m.SessionKind `json:"class_session_kind"`
	TeacherID      uuid.UUID     `json:"class_session_teacher_id"`
	SubscriptionID *uuid.UUID    `json:"class_session_subscription_id,omitempty"`

	Code  string  `json:"class_session_code"`
	Title *string `json:"class_session_title,omitempty"`

	ScheduledStart  time.Time  `json:"class_session_scheduled_start"`
	ScheduledEnd    time.Time  `json:"class_session_scheduled_end"`
	DurationMinutes int        `json:"class_session_duration_minutes"`
	StartedAt       *time.Time `json:"class_session_started_at,omitempty"`
	EndedAt         *time.Time `json:"class_session_ended_at,omitempty"`

	Status m.SessionStatus `json:"class_session_status"`

	CanceledAt   *time.Time `json:"class_session_canceled_at,omitempty"`
	CancelReason *string    `json:"class_session_cancel_reason,omitempty"`

	RescheduleCount int        `json:"class_session_reschedule_count"`
	OriginalStart   *time.Time `json:"class_session_original_start,omitempty"`

	QuotaCounted bool `json:"class_session_quota_counted"`

	RoomID  *string `json:"class_session_room_id,omitempty"`
	RoomURL *string `json:"class_session_room_url,omitempty"`

	CreatedAt time.Time `json:"class_session_created_at"`
	UpdatedAt time.Time `json:"class_session_updated_at"`
}

func FromModel(s *m.ClassSessionModel) SessionResponse {
	return SessionResponse{
		ID:              s.ClassSessionID,
		SchoolID:        s.ClassSessionSchoolID,
		Kind:            s.ClassSessionKind,
		TeacherID:       s.ClassSessionTeacherID,
		SubscriptionID:  s.ClassSessionSubscriptionID,
		Code:            s.ClassSessionCode,
		Title:           s.ClassSessionTitle,
		ScheduledStart:  s.ClassSessionScheduledStart,
		ScheduledEnd:    s.ScheduledEnd(),
		DurationMinutes: s.ClassSessionDurationMinutes,
		StartedAt:       s.ClassSessionStartedAt,
		EndedAt:         s.ClassSessionEndedAt,
		Status:          s.ClassSessionStatus,
		CanceledAt:      s.ClassSessionCanceledAt,
		CancelReason:    s.ClassSessionCancelReason,
		RescheduleCount: s.ClassSessionRescheduleCount,
		OriginalStart:   s.ClassSessionOriginalStart,
		QuotaCounted:    s.ClassSessionQuotaCounted,
		RoomID:          s.ClassSessionRoomID,
		RoomURL:         s.ClassSessionRoomURL,
		CreatedAt:       s.ClassSessionCreatedAt,
		UpdatedAt:       s.ClassSessionUpdatedAt,
	}
}

func FromModels(list []m.ClassSessionModel) []SessionResponse {
	out := make([]SessionResponse, 0, len(list))
	for i := range list {
		out = append(out, FromModel(&list[i]))
	}
	return out
}
