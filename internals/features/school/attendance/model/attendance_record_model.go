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
type AttendanceStatus string

const (
	AttendancePresent   AttendanceStatus = "present"
	AttendanceLate      AttendanceStatus = "late"
	AttendanceLeftEarly AttendanceStatus = "left_early"
	AttendanceAbsent    AttendanceStatus = "absent"
)

/*
=========================================================

	Model — satu baris per (session, participant)
	=========================================================
*/
type AttendanceRecordModel struct {
	// PK
	AttendanceRecordID uuid.UUID `gorm:"type:uuid;primaryKey;column:attendance_record_id" json:"attendance_record_id"`

	// Tenant guard
	AttendanceRecordSchoolID uuid.UUID `gorm:"type:uuid;not null;index;column:attendance_record_school_id" json:"attendance_record_school_id"`

	// Relasi (unik per session+participant)
	AttendanceRecordSessionID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_record_session_participant;column:attendance_record_session_id" json:"attendance_record_session_id"`
	AttendanceRecordParticipantID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_record_session_participant;column:attendance_record_participant_id" json:"attendance_record_participant_id"`

	// Hasil auto-tracking (dari event stream)
	AttendanceRecordAutoJoinAt          *time.Time `gorm:"column:attendance_record_auto_join_at" json:"attendance_record_auto_join_at,omitempty"`
	AttendanceRecordAutoLeaveAt         *time.Time `gorm:"column:attendance_record_auto_leave_at" json:"attendance_record_auto_leave_at,omitempty"`
	AttendanceRecordAutoDurationSeconds int        `gorm:"not null;default:0;column:attendance_record_auto_duration_seconds" json:"attendance_record_auto_duration_seconds"`
	AttendanceRecordAutoTracked         bool       `gorm:"not null;default:false;column:attendance_record_auto_tracked" json:"attendance_record_auto_tracked"`

	// Manual override (sekali di-set, aggregator tidak boleh menimpa)
	AttendanceRecordManuallyOverridden bool       `gorm:"not null;default:false;column:attendance_record_manually_overridden" json:"attendance_record_manually_overridden"`
	AttendanceRecordOverrideJoinAt     *time.Time `gorm:"column:attendance_record_override_join_at" json:"attendance_record_override_join_at,omitempty"`
	AttendanceRecordOverrideLeaveAt    *time.Time `gorm:"column:attendance_record_override_leave_at" json:"attendance_record_override_leave_at,omitempty"`
	AttendanceRecordOverrideReason     *string    `gorm:"type:text;column:attendance_record_override_reason" json:"attendance_record_override_reason,omitempty"`
	AttendanceRecordOverriddenBy       *uuid.UUID `gorm:"type:uuid;column:attendance_record_overridden_by" json:"attendance_record_overridden_by,omitempty"`

	// Verdict final
	AttendanceRecordStatus AttendanceStatus `gorm:"type:varchar(20);not null;default:'absent';column:attendance_record_status" json:"attendance_record_status"`

	// Audit (retained indefinitely)
	AttendanceRecordCreatedAt time.Time      `gorm:"not null;autoCreateTime;column:attendance_record_created_at" json:"attendance_record_created_at"`
	AttendanceRecordUpdatedAt time.Time      `gorm:"not null;autoUpdateTime;column:attendance_record_updated_at" json:"attendance_record_updated_at"`
	AttendanceRecordDeletedAt gorm.DeletedAt `gorm:"column:attendance_record_deleted_at;index" json:"attendance_record_deleted_at,omitempty"`
}

func (AttendanceRecordModel) TableName() string { return "attendance_records" }

func (m *AttendanceRecordModel) BeforeCreate(tx *gorm.DB) error {
	if m.AttendanceRecordID == uuid.Nil {
		m.AttendanceRecordID = uuid.New()
	}
	if m.AttendanceRecordSchoolID == uuid.Nil {
		return fmt.Errorf("attendance_record_school_id is required")
	}
	return nil
}
