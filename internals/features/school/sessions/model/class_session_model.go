package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
=========================================================

	Enums (mirror dari class_session_status_enum di DB)
	=========================================================
*/
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionLive      SessionStatus = "live"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionCanceled  SessionStatus = "canceled"
)

// IsTerminal: completed & canceled tidak boleh transisi lagi.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCanceled
}

type SessionKind string

const (
	SessionKindPrivate SessionKind = "private" // tutoring 1-on-1, quota-counted
	SessionKindGroup   SessionKind = "group"   // circle/kelompok, quota-counted
	SessionKindCourse  SessionKind = "course"  // sesi course, TIDAK dihitung quota
)

// CountsTowardQuota dispatch per kind (bukan inheritance).
func (k SessionKind) CountsTowardQuota() bool {
	return k == SessionKindPrivate || k == SessionKindGroup
}

/*
=========================================================

	Model
	=========================================================
*/
type ClassSessionModel struct {
	// PK
	ClassSessionID uuid.UUID `gorm:"type:uuid;primaryKey;column:class_session_id" json:"class_session_id"`

	// Tenant guard
	ClassSessionSchoolID uuid.UUID `gorm:"type:uuid;not null;index;column:class_session_school_id" json:"class_session_school_id"`

	// Jenis & relasi
	ClassSessionKind           SessionKind `gorm:"type:varchar(20);not null;column:class_session_kind" json:"class_session_kind"`
	ClassSessionTeacherID      uuid.UUID   `gorm:"type:uuid;not null;column:class_session_teacher_id" json:"class_session_teacher_id"`
	ClassSessionSubscriptionID *uuid.UUID  `gorm:"type:uuid;index;column:class_session_subscription_id" json:"class_session_subscription_id,omitempty"` // null untuk kind=course

	// Kode human-readable (mis. SES-20250901-XXXX)
	ClassSessionCode  string  `gorm:"type:varchar(40);not null;column:class_session_code" json:"class_session_code"`
	ClassSessionTitle *string `gorm:"type:text;column:class_session_title" json:"class_session_title,omitempty"`

	// Waktu
	ClassSessionScheduledStart  time.Time  `gorm:"not null;index;column:class_session_scheduled_start" json:"class_session_scheduled_start"`
	ClassSessionDurationMinutes int        `gorm:"not null;column:class_session_duration_minutes" json:"class_session_duration_minutes"`
	ClassSessionStartedAt       *time.Time `gorm:"column:class_session_started_at" json:"class_session_started_at,omitempty"`
	ClassSessionEndedAt         *time.Time `gorm:"column:class_session_ended_at" json:"class_session_ended_at,omitempty"`

	// Lifecycle
	ClassSessionStatus SessionStatus `gorm:"type:varchar(20);not null;default:'scheduled';index;column:class_session_status" json:"class_session_status"`

	// Metadata cancel
	ClassSessionCanceledAt     *time.Time `gorm:"column:class_session_canceled_at" json:"class_session_canceled_at,omitempty"`
	ClassSessionCancelReason   *string    `gorm:"type:text;column:class_session_cancel_reason" json:"class_session_cancel_reason,omitempty"`
	ClassSessionCanceledBy     *uuid.UUID `gorm:"type:uuid;column:class_session_canceled_by" json:"class_session_canceled_by,omitempty"`

	// Metadata reschedule
	ClassSessionRescheduleCount      int        `gorm:"not null;default:0;column:class_session_reschedule_count" json:"class_session_reschedule_count"`
	ClassSessionOriginalStart        *time.Time `gorm:"column:class_session_original_start" json:"class_session_original_start,omitempty"`
	ClassSessionLastRescheduleReason *string    `gorm:"type:text;column:class_session_last_reschedule_reason" json:"class_session_last_reschedule_reason,omitempty"`

	// Akuntansi quota: false→true tepat sekali; reset hanya lewat reversal teraudit
	ClassSessionQuotaCounted bool `gorm:"not null;default:false;column:class_session_quota_counted" json:"class_session_quota_counted"`

	// Meeting room (provider eksternal)
	ClassSessionRoomID  *string `gorm:"type:varchar(120);column:class_session_room_id" json:"class_session_room_id,omitempty"`
	ClassSessionRoomURL *string `gorm:"type:text;column:class_session_room_url" json:"class_session_room_url,omitempty"`

	// Audit & soft delete (tidak pernah hard-delete)
	ClassSessionCreatedAt time.Time      `gorm:"not null;autoCreateTime;column:class_session_created_at" json:"class_session_created_at"`
	ClassSessionUpdatedAt time.Time      `gorm:"not null;autoUpdateTime;column:class_session_updated_at" json:"class_session_updated_at"`
	ClassSessionDeletedAt gorm.DeletedAt `gorm:"column:class_session_deleted_at;index" json:"class_session_deleted_at,omitempty"`
}

func (ClassSessionModel) TableName() string { return "class_sessions" }

// BeforeCreate: set ID jika kosong + guard minimal
func (m *ClassSessionModel) BeforeCreate(tx *gorm.DB) error {
	if m.ClassSessionID == uuid.Nil {
		m.ClassSessionID = uuid.New()
	}
	if m.ClassSessionSchoolID == uuid.Nil {
		return fmt.Errorf("class_session_school_id is required")
	}
	// kind quota-counted wajib punya subscription; course justru tidak boleh
	if m.ClassSessionKind.CountsTowardQuota() && m.ClassSessionSubscriptionID == nil {
		return fmt.Errorf("class_session_subscription_id is required for kind %s", m.ClassSessionKind)
	}
	if m.ClassSessionCode == "" {
		m.ClassSessionCode = GenerateSessionCode(m.ClassSessionScheduledStart)
	}
	return nil
}

// ScheduledEnd = scheduled_start + durasi rencana.
func (m *ClassSessionModel) ScheduledEnd() time.Time {
	return m.ClassSessionScheduledStart.Add(time.Duration(m.ClassSessionDurationMinutes) * time.Minute)
}

// GenerateSessionCode bikin kode pendek: SES-YYYYMMDD-8charUUID.
func GenerateSessionCode(start time.Time) string {
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("SES-%s-%s", start.Format("20060102"), suffix)
}
