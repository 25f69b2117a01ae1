package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AttendanceEventKind string

const (
	AttendanceEventJoined AttendanceEventKind = "joined"
	AttendanceEventLeft   AttendanceEventKind = "left"
)

// Source ref khusus event hasil sintesis reconciler (bukan webhook asli).
const AttendanceEventSourceReconciler = "reconciler"

/*
=========================================================

	Model — append-only, tidak pernah di-update/hapus.
	Satu fakta per notifikasi join/leave dari meeting provider.
	=========================================================
*/
type AttendanceEventModel struct {
	AttendanceEventID uuid.UUID `gorm:"type:uuid;primaryKey;column:attendance_event_id" json:"attendance_event_id"`

	// Tenant guard
	AttendanceEventSchoolID uuid.UUID `gorm:"type:uuid;not null;index;column:attendance_event_school_id" json:"attendance_event_school_id"`

	AttendanceEventSessionID     uuid.UUID `gorm:"type:uuid;not null;index:idx_attendance_event_session;column:attendance_event_session_id" json:"attendance_event_session_id"`
	AttendanceEventParticipantID uuid.UUID `gorm:"type:uuid;not null;index:idx_attendance_event_session;column:attendance_event_participant_id" json:"attendance_event_participant_id"`

	AttendanceEventKind       AttendanceEventKind `gorm:"type:varchar(10);not null;column:attendance_event_kind" json:"attendance_event_kind"`
	AttendanceEventOccurredAt time.Time           `gorm:"not null;column:attendance_event_occurred_at" json:"attendance_event_occurred_at"`

	// Referensi asal (id notifikasi provider, atau "reconciler")
	AttendanceEventSourceRef  string         `gorm:"type:varchar(120);not null;default:'';column:attendance_event_source_ref" json:"attendance_event_source_ref"`
	AttendanceEventRawPayload datatypes.JSON `gorm:"type:jsonb;column:attendance_event_raw_payload" json:"attendance_event_raw_payload,omitempty"`

	AttendanceEventCreatedAt time.Time `gorm:"not null;autoCreateTime;column:attendance_event_created_at" json:"attendance_event_created_at"`
}

func (AttendanceEventModel) TableName() string { return "attendance_events" }

func (m *AttendanceEventModel) BeforeCreate(tx *gorm.DB) error {
	if m.AttendanceEventID == uuid.Nil {
		m.AttendanceEventID = uuid.New()
	}
	if m.AttendanceEventSchoolID == uuid.Nil {
		return fmt.Errorf("attendance_event_school_id is required")
	}
	if m.AttendanceEventOccurredAt.IsZero() {
		return fmt.Errorf("attendance_event_occurred_at is required")
	}
	return nil
}
