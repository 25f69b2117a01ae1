// file: internals/features/school/attendance/service/reconciler.go
package service

import (
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	"tutorhub_backend/internals/features/school/attendance/model"
	sessionModel "tutorhub_backend/internals/features/school/sessions/model"
)

// lookback bounded supaya scan tidak membesar terus; webhook yang hilang
// lebih lama dari ini dianggap sudah direkonsiliasi di run sebelumnya.
const reconcileLookback = 48 * time.Hour

// Reconcile: job periodik — sesi completed yang masih punya "joined"
// menggantung (webhook left hilang) mendapat closing event sintetis di
// akhir sesi, lalu verdict dihitung ulang. Webhook yang hilang tidak boleh
// meninggalkan attendance menggantung selamanya.
func Reconcile(db *gorm.DB, policy configs.Policy, now time.Time) (int, error) {
	settleAfter := time.Duration(policy.ReconcileAfterMinutes) * time.Minute

	var sessions []sessionModel.ClassSessionModel
	if err := db.
		Where("class_session_status = ?", sessionModel.SessionCompleted).
		Where("class_session_ended_at IS NOT NULL").
		Where("class_session_ended_at > ?", now.Add(-reconcileLookback)).
		Where("class_session_ended_at <= ?", now.Add(-settleAfter)).
		Limit(200).
		Find(&sessions).Error; err != nil {
		return 0, err
	}

	repaired := 0
	for i := range sessions {
		sess := &sessions[i]
		n, err := reconcileSession(db, sess, policy)
		if err != nil {
			log.Printf("[RECONCILE ERROR] session=%s: %v", sess.ClassSessionID, err)
			continue
		}
		repaired += n
	}
	return repaired, nil
}

func reconcileSession(db *gorm.DB, sess *sessionModel.ClassSessionModel, policy configs.Policy) (int, error) {
	var events []model.AttendanceEventModel
	if err := db.
		Where("attendance_event_session_id = ?", sess.ClassSessionID).
		Order("attendance_event_occurred_at ASC").
		Find(&events).Error; err != nil {
		return 0, err
	}

	byParticipant := make(map[uuid.UUID][]model.AttendanceEventModel)
	for i := range events {
		pid := events[i].AttendanceEventParticipantID
		byParticipant[pid] = append(byParticipant[pid], events[i])
	}

	end := sessionActualEnd(sess)
	synthesized := 0

	for pid, evs := range byParticipant {
		sum := SummarizeEvents(evs, end)
		if !sum.HasDanglingJoin {
			continue
		}

		log.Printf("[RECONCILE_GAP] session=%s participant=%s: closing event hilang, sintesis left di %s",
			sess.ClassSessionID, pid, end.Format(time.RFC3339))

		closing := model.AttendanceEventModel{
			AttendanceEventSchoolID:      sess.ClassSessionSchoolID,
			AttendanceEventSessionID:     sess.ClassSessionID,
			AttendanceEventParticipantID: pid,
			AttendanceEventKind:          model.AttendanceEventLeft,
			AttendanceEventOccurredAt:    end,
			AttendanceEventSourceRef:     model.AttendanceEventSourceReconciler,
		}
		if err := db.Create(&closing).Error; err != nil {
			return synthesized, err
		}
		synthesized++
	}

	if synthesized > 0 {
		if err := AggregateSession(db, sess, policy); err != nil {
			return synthesized, err
		}
	}
	return synthesized, nil
}
