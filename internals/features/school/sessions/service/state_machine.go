// file: internals/features/school/sessions/service/state_machine.go
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	subscriptionModel "tutorhub_backend/internals/features/finance/subscriptions/model"
	subscriptionService "tutorhub_backend/internals/features/finance/subscriptions/service"
	notifierService "tutorhub_backend/internals/features/home/notifications/service"
	attendanceService "tutorhub_backend/internals/features/school/attendance/service"
	sessionModel "tutorhub_backend/internals/features/school/sessions/model"
	helper "tutorhub_backend/internals/helpers"
)

/*
=========================================================

	Session State Machine.

	scheduled → live → {paused ↔ live} → completed
	scheduled|live|paused → canceled (escape)
	completed & canceled terminal.

	Semua transisi diserialisasi per-sesi lewat row lock — pemanggil
	yang kalah menerima ErrInvalidTransition, bukan state korup.
	=========================================================
*/
type SessionService struct {
	DB       *gorm.DB
	Rooms    MeetingProvider
	Notifier notifierService.Notifier
	Policy   configs.Policy
}

func NewSessionService(db *gorm.DB, rooms MeetingProvider, notifier notifierService.Notifier, policy configs.Policy) *SessionService {
	return &SessionService{DB: db, Rooms: rooms, Notifier: notifier, Policy: policy}
}

type ScheduleInput struct {
	SchoolID        uuid.UUID
	Kind            sessionModel.SessionKind
	TeacherID       uuid.UUID
	SubscriptionID  *uuid.UUID
	Title           *string
	ScheduledStart  time.Time
	DurationMinutes int
}

// Schedule membuat sesi baru (status scheduled). Untuk kind quota-counted,
// subscription pemilik harus mengizinkan penjadwalan (suspended memblokir).
func (s *SessionService) Schedule(ctx context.Context, in ScheduleInput, now time.Time) (*sessionModel.ClassSessionModel, error) {
	if !in.ScheduledStart.After(now) {
		return nil, ErrPastSchedule
	}

	var created sessionModel.ClassSessionModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Kind.CountsTowardQuota() {
			if in.SubscriptionID == nil {
				return ErrSchedulingBlocked
			}
			var sub subscriptionModel.SubscriptionModel
			if err := tx.
				Where("subscription_id = ?", *in.SubscriptionID).
				Where("subscription_school_id = ?", in.SchoolID).
				First(&sub).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrSchedulingBlocked
				}
				return err
			}
			if !sub.SubscriptionStatus.AllowsScheduling() {
				return ErrSchedulingBlocked
			}
			if sub.SubscriptionSessionsRemaining <= 0 {
				return ErrSchedulingBlocked
			}
			// jadwal harus di dalam rentang aktif subscription
			if sub.SubscriptionStartDate != nil && in.ScheduledStart.Before(*sub.SubscriptionStartDate) {
				return ErrSchedulingBlocked
			}
			if sub.SubscriptionEndDate != nil && in.ScheduledStart.After(*sub.SubscriptionEndDate) {
				return ErrSchedulingBlocked
			}
		}

		created = sessionModel.ClassSessionModel{
			ClassSessionSchoolID:        in.SchoolID,
			ClassSessionKind:            in.Kind,
			ClassSessionTeacherID:       in.TeacherID,
			ClassSessionSubscriptionID:  in.SubscriptionID,
			ClassSessionTitle:           in.Title,
			ClassSessionScheduledStart:  in.ScheduledStart,
			ClassSessionDurationMinutes: in.DurationMinutes,
			ClassSessionStatus:          sessionModel.SessionScheduled,
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}

	_ = s.Notifier.Send(ctx, notifierService.NotifyInput{
		SchoolID:    created.ClassSessionSchoolID,
		RecipientID: created.ClassSessionTeacherID,
		Kind:        "session_scheduled",
		Title:       "Sesi baru terjadwal",
		Body:        "Sesi " + created.ClassSessionCode + " terjadwal.",
		Tags:        []string{"session"},
		Context:     map[string]any{"session_id": created.ClassSessionID, "starts_at": created.ClassSessionScheduledStart},
	})
	return &created, nil
}

// lockSession: ambil sesi FOR UPDATE, tenant-scoped.
func lockSession(tx *gorm.DB, schoolID, sessionID uuid.UUID) (*sessionModel.ClassSessionModel, error) {
	var sess sessionModel.ClassSessionModel
	if err := helper.LockForUpdate(tx).
		Where("class_session_id = ?", sessionID).
		Where("class_session_school_id = ?", schoolID).
		First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// Activate: scheduled → live saat now >= scheduled_start.
// Idempotent: sesi yang sudah live → no-op sukses.
func (s *SessionService) Activate(ctx context.Context, schoolID, sessionID uuid.UUID, now time.Time) (*sessionModel.ClassSessionModel, error) {
	var sess *sessionModel.ClassSessionModel

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := lockSession(tx, schoolID, sessionID)
		if err != nil {
			return err
		}
		if cur.ClassSessionStatus == sessionModel.SessionLive {
			sess = cur // re-invocation → no-op
			return nil
		}
		if cur.ClassSessionStatus != sessionModel.SessionScheduled {
			return ErrInvalidTransition
		}
		if now.Before(cur.ClassSessionScheduledStart) {
			return ErrPastSchedule
		}

		cur.ClassSessionStatus = sessionModel.SessionLive
		cur.ClassSessionStartedAt = &now
		if err := tx.Save(cur).Error; err != nil {
			return err
		}
		sess = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	// room creation DI LUAR lock; gagal → log, transisi tetap sah
	if sess.ClassSessionRoomID == nil {
		roomID, roomURL, rerr := s.Rooms.CreateRoom(ctx, sess.ClassSessionID)
		if rerr != nil {
			log.Printf("[SESSION] create room gagal session=%s: %v", sess.ClassSessionID, rerr)
		} else {
			updates := map[string]any{"class_session_room_id": roomID}
			if roomURL != "" {
				updates["class_session_room_url"] = roomURL
			}
			if uerr := s.DB.WithContext(ctx).Model(&sessionModel.ClassSessionModel{}).
				Where("class_session_id = ?", sess.ClassSessionID).
				Updates(updates).Error; uerr != nil {
				log.Printf("[SESSION] simpan room gagal session=%s: %v", sess.ClassSessionID, uerr)
			} else {
				sess.ClassSessionRoomID = &roomID
				if roomURL != "" {
					sess.ClassSessionRoomURL = &roomURL
				}
			}
		}
	}
	return sess, nil
}

// Complete: live|paused → completed; set ended_at; quota counter dipanggil
// di transaksi yang sama untuk kind yang dihitung quota.
func (s *SessionService) Complete(ctx context.Context, schoolID, sessionID uuid.UUID, actualEnd time.Time) (*sessionModel.ClassSessionModel, error) {
	var sess *sessionModel.ClassSessionModel

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := lockSession(tx, schoolID, sessionID)
		if err != nil {
			return err
		}
		if cur.ClassSessionStatus != sessionModel.SessionLive &&
			cur.ClassSessionStatus != sessionModel.SessionPaused {
			return ErrInvalidTransition
		}

		cur.ClassSessionStatus = sessionModel.SessionCompleted
		cur.ClassSessionEndedAt = &actualEnd
		if err := tx.Save(cur).Error; err != nil {
			return err
		}

		if cur.ClassSessionKind.CountsTowardQuota() {
			if err := subscriptionService.ApplyQuota(tx, cur.ClassSessionID); err != nil {
				return err
			}
			// refleksikan flag di snapshot yang dikembalikan
			cur.ClassSessionQuotaCounted = true
		}
		sess = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	// di luar lock: tutup room, hitung attendance final, notifikasi
	if sess.ClassSessionRoomID != nil {
		if rerr := s.Rooms.CloseRoom(ctx, *sess.ClassSessionRoomID); rerr != nil {
			log.Printf("[SESSION] close room gagal session=%s: %v", sess.ClassSessionID, rerr)
		}
	}
	if aerr := attendanceService.AggregateSession(s.DB.WithContext(ctx), sess, s.Policy); aerr != nil {
		log.Printf("[SESSION] aggregate attendance gagal session=%s: %v", sess.ClassSessionID, aerr)
	}

	_ = s.Notifier.Send(ctx, notifierService.NotifyInput{
		SchoolID:    sess.ClassSessionSchoolID,
		RecipientID: sess.ClassSessionTeacherID,
		Kind:        "session_completed",
		Title:       "Sesi selesai",
		Body:        "Sesi " + sess.ClassSessionCode + " selesai.",
		Tags:        []string{"session"},
		Context:     map[string]any{"session_id": sess.ClassSessionID},
	})
	return sess, nil
}

// Cancel: boleh dari semua status non-terminal. Cancel sesi yang sudah
// completed → ErrPastSchedule, field tidak berubah.
func (s *SessionService) Cancel(ctx context.Context, schoolID, sessionID uuid.UUID, reason string, actor uuid.UUID, now time.Time) (*sessionModel.ClassSessionModel, error) {
	var sess *sessionModel.ClassSessionModel

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := lockSession(tx, schoolID, sessionID)
		if err != nil {
			return err
		}
		if cur.ClassSessionStatus == sessionModel.SessionCompleted {
			return ErrPastSchedule
		}
		if cur.ClassSessionStatus == sessionModel.SessionCanceled {
			return ErrInvalidTransition
		}

		cur.ClassSessionStatus = sessionModel.SessionCanceled
		cur.ClassSessionCanceledAt = &now
		cur.ClassSessionCancelReason = &reason
		cur.ClassSessionCanceledBy = &actor
		if err := tx.Save(cur).Error; err != nil {
			return err
		}
		sess = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	if sess.ClassSessionRoomID != nil {
		if rerr := s.Rooms.CloseRoom(ctx, *sess.ClassSessionRoomID); rerr != nil {
			log.Printf("[SESSION] close room gagal session=%s: %v", sess.ClassSessionID, rerr)
		}
	}

	_ = s.Notifier.Send(ctx, notifierService.NotifyInput{
		SchoolID:    sess.ClassSessionSchoolID,
		RecipientID: sess.ClassSessionTeacherID,
		Kind:        "session_canceled",
		Title:       "Sesi dibatalkan",
		Body:        "Sesi " + sess.ClassSessionCode + " dibatalkan: " + reason,
		Tags:        []string{"session"},
		Context:     map[string]any{"session_id": sess.ClassSessionID, "reason": reason},
	})
	return sess, nil
}

// Reschedule: hanya dari scheduled, ke waktu depan, di dalam rentang
// aktif subscription pemilik.
func (s *SessionService) Reschedule(ctx context.Context, schoolID, sessionID uuid.UUID, newTime time.Time, reason string, now time.Time) (*sessionModel.ClassSessionModel, error) {
	var sess *sessionModel.ClassSessionModel

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := lockSession(tx, schoolID, sessionID)
		if err != nil {
			return err
		}
		if cur.ClassSessionStatus != sessionModel.SessionScheduled {
			return ErrNotReschedulable
		}
		if !newTime.After(now) {
			return ErrNotReschedulable
		}

		if cur.ClassSessionSubscriptionID != nil {
			var sub subscriptionModel.SubscriptionModel
			if err := tx.
				Where("subscription_id = ?", *cur.ClassSessionSubscriptionID).
				First(&sub).Error; err != nil {
				return err
			}
			if sub.SubscriptionStartDate != nil && newTime.Before(*sub.SubscriptionStartDate) {
				return ErrNotReschedulable
			}
			if sub.SubscriptionEndDate != nil && newTime.After(*sub.SubscriptionEndDate) {
				return ErrNotReschedulable
			}
		}

		if cur.ClassSessionOriginalStart == nil {
			orig := cur.ClassSessionScheduledStart
			cur.ClassSessionOriginalStart = &orig
		}
		cur.ClassSessionScheduledStart = newTime
		cur.ClassSessionRescheduleCount++
		cur.ClassSessionLastRescheduleReason = &reason
		if err := tx.Save(cur).Error; err != nil {
			return err
		}
		sess = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Pause: live → paused.
func (s *SessionService) Pause(ctx context.Context, schoolID, sessionID uuid.UUID) (*sessionModel.ClassSessionModel, error) {
	return s.flip(ctx, schoolID, sessionID, sessionModel.SessionLive, sessionModel.SessionPaused)
}

// Resume: paused → live.
func (s *SessionService) Resume(ctx context.Context, schoolID, sessionID uuid.UUID) (*sessionModel.ClassSessionModel, error) {
	return s.flip(ctx, schoolID, sessionID, sessionModel.SessionPaused, sessionModel.SessionLive)
}

func (s *SessionService) flip(ctx context.Context, schoolID, sessionID uuid.UUID, from, to sessionModel.SessionStatus) (*sessionModel.ClassSessionModel, error) {
	var sess *sessionModel.ClassSessionModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := lockSession(tx, schoolID, sessionID)
		if err != nil {
			return err
		}
		if cur.ClassSessionStatus != from {
			return ErrInvalidTransition
		}
		cur.ClassSessionStatus = to
		if err := tx.Save(cur).Error; err != nil {
			return err
		}
		sess = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

/*
=========================================================

	Sweep periodik (tick menit-an). Keduanya idempotent & aman
	dipanggil paralel — transisi per sesi dilindungi row lock.
	=========================================================
*/

// ActivateDueSessions: semua sesi scheduled yang sudah lewat jadwal → live.
func (s *SessionService) ActivateDueSessions(ctx context.Context, now time.Time) (int, error) {
	var due []sessionModel.ClassSessionModel
	if err := s.DB.WithContext(ctx).
		Where("class_session_status = ?", sessionModel.SessionScheduled).
		Where("class_session_scheduled_start <= ?", now).
		Limit(200).
		Find(&due).Error; err != nil {
		return 0, err
	}

	count := 0
	for i := range due {
		sess := &due[i]
		if _, err := s.Activate(ctx, sess.ClassSessionSchoolID, sess.ClassSessionID, now); err != nil {
			// race dengan cancel/complete manual → bukan fatal
			if !errors.Is(err, ErrInvalidTransition) {
				log.Printf("[TICK] activate session=%s gagal: %v", sess.ClassSessionID, err)
			}
			continue
		}
		count++
	}
	return count, nil
}

// AutoCompleteOverrun: sesi live/paused yang melewati
// scheduled_start + durasi + buffer → auto-terminate jadi completed.
// Sesi tanpa peserta tetap completed; verdict attendance default absent.
func (s *SessionService) AutoCompleteOverrun(ctx context.Context, now time.Time) (int, error) {
	var running []sessionModel.ClassSessionModel
	if err := s.DB.WithContext(ctx).
		Where("class_session_status IN ?", []sessionModel.SessionStatus{
			sessionModel.SessionLive,
			sessionModel.SessionPaused,
		}).
		Where("class_session_scheduled_start <= ?", now).
		Limit(200).
		Find(&running).Error; err != nil {
		return 0, err
	}

	buffer := time.Duration(s.Policy.OverrunBufferMinutes) * time.Minute
	count := 0
	for i := range running {
		sess := &running[i]
		deadline := sess.ScheduledEnd().Add(buffer)
		if now.Before(deadline) {
			continue
		}

		// auto-terminate di akhir jadwal, bukan di waktu tick
		if _, err := s.Complete(ctx, sess.ClassSessionSchoolID, sess.ClassSessionID, sess.ScheduledEnd()); err != nil {
			if !errors.Is(err, ErrInvalidTransition) {
				log.Printf("[TICK] auto-complete session=%s gagal: %v", sess.ClassSessionID, err)
			}
			continue
		}
		log.Printf("[TICK] session=%s overrun → auto-completed", sess.ClassSessionID)
		count++
	}
	return count, nil
}
