package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	m "tutorhub_backend/internals/features/school/attendance/model"
)

/* =========================================================
   WEBHOOK PAYLOAD (meeting provider)
   ========================================================= */

type MeetingEventRequest struct {
	SessionID     uuid.UUID `json:"session_id" validate:"required"`
	ParticipantID uuid.UUID `json:"participant_id" validate:"required"`
	Event         string    `json:"event" validate:"required,oneof=joined left"`
	OccurredAt    time.Time `json:"occurred_at" validate:"required"`
	SourceRef     string    `json:"source_ref" validate:"omitempty,max=120"`
}

func (r *MeetingEventRequest) Normalize() {
	r.Event = strings.ToLower(strings.TrimSpace(r.Event))
	r.SourceRef = strings.TrimSpace(r.SourceRef)
}

func (r MeetingEventRequest) Kind() m.AttendanceEventKind {
	if r.Event == "left" {
		return m.AttendanceEventLeft
	}
	return m.AttendanceEventJoined
}

/* =========================================================
   MANUAL OVERRIDE
   ========================================================= */

type OverrideAttendanceRequest struct {
	ParticipantID uuid.UUID          `json:"attendance_record_participant_id" validate:"required"`
	Status        m.AttendanceStatus `json:"attendance_record_status" validate:"required,oneof=present late left_early absent"`
	JoinAt        *time.Time         `json:"attendance_record_override_join_at"`
	LeaveAt       *time.Time         `json:"attendance_record_override_leave_at"`
	Reason        string             `json:"attendance_record_override_reason" validate:"required,min=3,max=500"`
}

func (r *OverrideAttendanceRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

/* =========================================================
   RESPONSE
   ========================================================= */

type AttendanceRecordResponse struct {
	ID            uuid.UUID `json:"attendance_record_id"`
	SessionID     uuid.UUID `json:"attendance_record_session_id"`
	ParticipantID uuid.UUID `json:"attendance_record_participant_id"`

	AutoJoinAt          *time.Time `json:"attendance_record_auto_join_at,omitempty"`
	AutoLeaveAt         *time.Time `json:"attendance_record_auto_leave_at,omitempty"`
	AutoDurationSeconds int        `json:"attendance_record_auto_duration_seconds"`
	AutoTracked         bool       `json:"attendance_record_auto_tracked"`

	ManuallyOverridden bool       `json:"attendance_record_manually_overridden"`
	OverrideReason     *string    `json:"attendance_record_override_reason,omitempty"`
	OverriddenBy       *uuid.UUID `json:"attendance_record_overridden_by,omitempty"`

	Status m.AttendanceStatus `json:"attendance_record_status"`

	UpdatedAt time.Time `json:"attendance_record_updated_at"`
}

func FromRecordModel(r *m.AttendanceRecordModel) AttendanceRecordResponse {
	return AttendanceRecordResponse{
		ID:                  r.AttendanceRecordID,
		SessionID:           r.AttendanceRecordSessionID,
		ParticipantID:       r.AttendanceRecordParticipantID,
		AutoJoinAt:          r.AttendanceRecordAutoJoinAt,
		AutoLeaveAt:         r.AttendanceRecordAutoLeaveAt,
		AutoDurationSeconds: r.AttendanceRecordAutoDurationSeconds,
		AutoTracked:         r.AttendanceRecordAutoTracked,
		ManuallyOverridden:  r.AttendanceRecordManuallyOverridden,
		OverrideReason:      r.AttendanceRecordOverrideReason,
		OverriddenBy:        r.AttendanceRecordOverriddenBy,
		Status:              r.AttendanceRecordStatus,
		UpdatedAt:           r.AttendanceRecordUpdatedAt,
	}
}

func FromRecordModels(list []m.AttendanceRecordModel) []AttendanceRecordResponse {
	out := make([]AttendanceRecordResponse, 0, len(list))
	for i := range list {
		out = append(out, FromRecordModel(&list[i]))
	}
	return out
}
