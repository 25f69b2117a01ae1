// file: internals/features/school/attendance/service/aggregator.go
package service

import (
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	"tutorhub_backend/internals/features/school/attendance/model"
	sessionModel "tutorhub_backend/internals/features/school/sessions/model"
)

/*
=========================================================

	Attendance Aggregator.

	Event stream join/left → satu AttendanceRecord otoritatif per
	(session, participant). Fungsi agregasi murni & replayable:
	replay urutan event yang sama menghasilkan verdict yang sama.
	=========================================================
*/

// EventSummary hasil pairing interval join/left satu participant.
type EventSummary struct {
	JoinAt          *time.Time
	LeaveAt         *time.Time
	Duration        time.Duration
	HasDanglingJoin bool // "joined" tanpa "left" penutup
}

// SummarizeEvents: sort by timestamp (delivery out-of-order ditoleransi di
// sini, bukan dengan mengandalkan urutan datang), pasangkan join/left ke
// interval, jumlahkan durasi. Trailing join ditutup di sessionEnd.
func SummarizeEvents(events []model.AttendanceEventModel, sessionEnd time.Time) EventSummary {
	if len(events) == 0 {
		return EventSummary{}
	}

	sorted := make([]model.AttendanceEventModel, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AttendanceEventOccurredAt.Before(sorted[j].AttendanceEventOccurredAt)
	})

	var (
		sum       EventSummary
		openJoin  *time.Time
		lastLeave *time.Time
	)

	for i := range sorted {
		ev := sorted[i]
		t := ev.AttendanceEventOccurredAt

		switch ev.AttendanceEventKind {
		case model.AttendanceEventJoined:
			if openJoin == nil {
				tt := t
				openJoin = &tt
			}
			// join dobel (reconnect sebelum left tercatat) → pakai join pertama
			if sum.JoinAt == nil {
				tt := t
				sum.JoinAt = &tt
			}
		case model.AttendanceEventLeft:
			if openJoin != nil {
				if t.After(*openJoin) {
					sum.Duration += t.Sub(*openJoin)
				}
				openJoin = nil
			}
			tt := t
			lastLeave = &tt
		}
	}

	// trailing join tanpa left → tutup di akhir sesi
	if openJoin != nil {
		sum.HasDanglingJoin = true
		if sessionEnd.After(*openJoin) {
			sum.Duration += sessionEnd.Sub(*openJoin)
		}
		end := sessionEnd
		lastLeave = &end
	}

	sum.LeaveAt = lastLeave
	return sum
}

// Classify menentukan verdict dari summary vs ambang policy.
// Urutan: absent → late → left_early → present.
func Classify(policy configs.Policy, scheduledStart, sessionEnd time.Time, sum EventSummary) model.AttendanceStatus {
	minPresent := time.Duration(policy.MinPresentMinutes) * time.Minute
	lateGrace := time.Duration(policy.LateGraceMinutes) * time.Minute
	leftEarly := time.Duration(policy.LeftEarlyMinutes) * time.Minute

	if sum.JoinAt == nil || sum.Duration < minPresent {
		return model.AttendanceAbsent
	}
	if sum.JoinAt.After(scheduledStart.Add(lateGrace)) {
		return model.AttendanceLate
	}
	if sum.LeaveAt != nil && sum.LeaveAt.Before(sessionEnd.Add(-leftEarly)) {
		return model.AttendanceLeftEarly
	}
	return model.AttendancePresent
}

// sessionActualEnd: ended_at kalau ada, fallback ke akhir jadwal.
func sessionActualEnd(sess *sessionModel.ClassSessionModel) time.Time {
	if sess.ClassSessionEndedAt != nil {
		return *sess.ClassSessionEndedAt
	}
	return sess.ScheduledEnd()
}

// AggregateSession menghitung ulang semua record satu sesi dari event stream.
// Record dengan manually_overridden = true TIDAK PERNAH ditimpa — cek flag
// ini dulu sebelum klasifikasi otomatis.
func AggregateSession(db *gorm.DB, sess *sessionModel.ClassSessionModel, policy configs.Policy) error {
	var events []model.AttendanceEventModel
	if err := db.
		Where("attendance_event_session_id = ?", sess.ClassSessionID).
		Order("attendance_event_occurred_at ASC").
		Find(&events).Error; err != nil {
		return err
	}

	byParticipant := make(map[uuid.UUID][]model.AttendanceEventModel)
	for i := range events {
		pid := events[i].AttendanceEventParticipantID
		byParticipant[pid] = append(byParticipant[pid], events[i])
	}

	// record yang sudah ada tapi tanpa event (dibuat saat scheduling) → absent
	var existing []model.AttendanceRecordModel
	if err := db.
		Where("attendance_record_session_id = ?", sess.ClassSessionID).
		Find(&existing).Error; err != nil {
		return err
	}
	for i := range existing {
		pid := existing[i].AttendanceRecordParticipantID
		if _, ok := byParticipant[pid]; !ok {
			byParticipant[pid] = nil
		}
	}

	end := sessionActualEnd(sess)

	for pid, evs := range byParticipant {
		if err := aggregateParticipant(db, sess, pid, evs, end, policy); err != nil {
			return err
		}
	}
	return nil
}

func aggregateParticipant(db *gorm.DB, sess *sessionModel.ClassSessionModel, participantID uuid.UUID, events []model.AttendanceEventModel, sessionEnd time.Time, policy configs.Policy) error {
	var rec model.AttendanceRecordModel
	err := db.
		Where("attendance_record_session_id = ?", sess.ClassSessionID).
		Where("attendance_record_participant_id = ?", participantID).
		First(&rec).Error

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil && rec.AttendanceRecordManuallyOverridden {
		// override manual final — recompute apapun tidak boleh mengubahnya
		return nil
	}

	sum := SummarizeEvents(events, sessionEnd)
	if sum.HasDanglingJoin {
		log.Printf("[ATTENDANCE_GAP] session=%s participant=%s joined tanpa left, durasi ditutup di akhir sesi", sess.ClassSessionID, participantID)
	}
	status := Classify(policy, sess.ClassSessionScheduledStart, sessionEnd, sum)

	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = model.AttendanceRecordModel{
			AttendanceRecordSchoolID:      sess.ClassSessionSchoolID,
			AttendanceRecordSessionID:     sess.ClassSessionID,
			AttendanceRecordParticipantID: participantID,
		}
	}

	rec.AttendanceRecordAutoJoinAt = sum.JoinAt
	rec.AttendanceRecordAutoLeaveAt = sum.LeaveAt
	rec.AttendanceRecordAutoDurationSeconds = int(sum.Duration.Seconds())
	rec.AttendanceRecordAutoTracked = len(events) > 0
	rec.AttendanceRecordStatus = status

	return db.Save(&rec).Error
}
