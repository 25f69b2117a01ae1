// file: internals/features/school/attendance/service/override.go
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tutorhub_backend/internals/features/home/notifications/model"
	notifService "tutorhub_backend/internals/features/home/notifications/service"
	attModel "tutorhub_backend/internals/features/school/attendance/model"
	sessionModel "tutorhub_backend/internals/features/school/sessions/model"
	helper "tutorhub_backend/internals/helpers"
)

var (
	ErrRecordNotFound = errors.New("attendance record not found")
	ErrInvalidStatus  = errors.New("invalid attendance status")
)

type OverrideInput struct {
	SchoolID      uuid.UUID
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
	Status        attModel.AttendanceStatus
	JoinAt        *time.Time
	LeaveAt       *time.Time
	Reason        string
	OverriddenBy  uuid.UUID
}

// OverrideAttendance: koreksi manual oleh guru/admin. Setelah di-override,
// verdict dibekukan — aggregator & reconciler tidak menimpa lagi.
func OverrideAttendance(ctx context.Context, db *gorm.DB, notifier notifService.Notifier, in OverrideInput) (*attModel.AttendanceRecordModel, error) {
	switch in.Status {
	case attModel.AttendancePresent, attModel.AttendanceLate,
		attModel.AttendanceLeftEarly, attModel.AttendanceAbsent:
	default:
		return nil, ErrInvalidStatus
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	// pastikan sesi milik tenant yang sama
	var sess sessionModel.ClassSessionModel
	if err := tx.
		Where("class_session_id = ? AND class_session_school_id = ?", in.SessionID, in.SchoolID).
		First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var rec attModel.AttendanceRecordModel
	err := helper.LockForUpdate(tx).
		Where("attendance_record_session_id = ? AND attendance_record_participant_id = ?",
			in.SessionID, in.ParticipantID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// peserta tanpa event sama sekali tetap bisa dikoreksi (mis. hadir offline)
		rec = attModel.AttendanceRecordModel{
			AttendanceRecordSchoolID:      in.SchoolID,
			AttendanceRecordSessionID:     in.SessionID,
			AttendanceRecordParticipantID: in.ParticipantID,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	reason := in.Reason
	overriddenBy := in.OverriddenBy

	rec.AttendanceRecordManuallyOverridden = true
	rec.AttendanceRecordStatus = in.Status
	rec.AttendanceRecordOverrideJoinAt = in.JoinAt
	rec.AttendanceRecordOverrideLeaveAt = in.LeaveAt
	rec.AttendanceRecordOverrideReason = &reason
	rec.AttendanceRecordOverriddenBy = &overriddenBy

	if err := tx.Save(&rec).Error; err != nil {
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if notifier != nil {
		_ = notifier.Send(ctx, notifService.NotifyInput{
			SchoolID:    in.SchoolID,
			RecipientID: in.ParticipantID,
			Kind:        model.NotificationAttendanceMarked,
			Title:       "Kehadiran diperbarui",
			Body:        "Status kehadiran Anda dikoreksi oleh pengajar.",
			Tags:        []string{"attendance"},
			Context: map[string]any{
				"session_id": in.SessionID,
				"status":     string(in.Status),
			},
		})
	}

	return &rec, nil
}
