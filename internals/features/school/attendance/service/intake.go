// file: internals/features/school/attendance/service/intake.go
package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	"tutorhub_backend/internals/features/school/attendance/model"
	sessionModel "tutorhub_backend/internals/features/school/sessions/model"
)

var ErrSessionNotFound = errors.New("session not found for attendance event")

type MeetingEventInput struct {
	SchoolID      uuid.UUID
	SessionID     uuid.UUID
	ParticipantID uuid.UUID
	Kind          model.AttendanceEventKind
	OccurredAt    time.Time
	SourceRef     string
	RawPayload    []byte
}

// RecordMeetingEvent: intake notifikasi join/left dari meeting provider.
// Event di-append apa adanya (immutable); record dibuat lazy saat event
// pertama. Verdict final dihitung oleh aggregator, bukan di sini.
func RecordMeetingEvent(db *gorm.DB, in MeetingEventInput, policy configs.Policy) error {
	q := db.Where("class_session_id = ?", in.SessionID)
	// webhook provider tidak membawa tenant — derive dari sesi
	if in.SchoolID != uuid.Nil {
		q = q.Where("class_session_school_id = ?", in.SchoolID)
	}

	var sess sessionModel.ClassSessionModel
	if err := q.First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if in.SchoolID == uuid.Nil {
		in.SchoolID = sess.ClassSessionSchoolID
	}

	ev := model.AttendanceEventModel{
		AttendanceEventSchoolID:      in.SchoolID,
		AttendanceEventSessionID:     in.SessionID,
		AttendanceEventParticipantID: in.ParticipantID,
		AttendanceEventKind:          in.Kind,
		AttendanceEventOccurredAt:    in.OccurredAt,
		AttendanceEventSourceRef:     in.SourceRef,
	}
	if len(in.RawPayload) > 0 {
		ev.AttendanceEventRawPayload = datatypes.JSON(in.RawPayload)
	}
	if err := db.Create(&ev).Error; err != nil {
		return err
	}

	// record lazy per (session, participant)
	rec := model.AttendanceRecordModel{
		AttendanceRecordSchoolID:      in.SchoolID,
		AttendanceRecordSessionID:     in.SessionID,
		AttendanceRecordParticipantID: in.ParticipantID,
	}
	if err := db.
		Where("attendance_record_session_id = ?", in.SessionID).
		Where("attendance_record_participant_id = ?", in.ParticipantID).
		FirstOrCreate(&rec).Error; err != nil {
		return err
	}

	// webhook terlambat setelah sesi selesai → hitung ulang verdict
	if sess.ClassSessionStatus == sessionModel.SessionCompleted {
		return AggregateSession(db, &sess, policy)
	}
	return nil
}
