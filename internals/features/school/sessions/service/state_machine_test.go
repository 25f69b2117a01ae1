package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tutorhub_backend/internals/configs"
	subscriptionModel "tutorhub_backend/internals/features/finance/subscriptions/model"
	notifService "tutorhub_backend/internals/features/home/notifications/service"
	attendanceModel "tutorhub_backend/internals/features/school/attendance/model"
	"tutorhub_backend/internals/features/school/sessions/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.ClassSessionModel{},
		&subscriptionModel.SubscriptionModel{},
		&attendanceModel.AttendanceRecordModel{},
		&attendanceModel.AttendanceEventModel{},
	))
	return db
}

func testPolicy() configs.Policy {
	return configs.Policy{
		LateGraceMinutes:      10,
		MinPresentMinutes:     5,
		LeftEarlyMinutes:      10,
		OverrunBufferMinutes:  10,
		ReconcileAfterMinutes: 15,
		RetryBackoffHours:     []int{24, 48},
		MaxRenewalAttempts:    3,
		GracePeriodDays:       3,
	}
}

func newTestService(db *gorm.DB) *SessionService {
	return NewSessionService(db, NoopMeetingProvider{}, notifService.NoopNotifier{}, testPolicy())
}

func seedActiveSubscription(t *testing.T, db *gorm.DB, schoolID uuid.UUID, remaining int) *subscriptionModel.SubscriptionModel {
	t.Helper()
	end := time.Now().AddDate(0, 1, 0)
	sub := subscriptionModel.SubscriptionModel{
		SubscriptionSchoolID:          schoolID,
		SubscriptionStudentID:         uuid.New(),
		SubscriptionPlanName:          "Privat 8 Sesi",
		SubscriptionTotalSessions:     8,
		SubscriptionSessionsRemaining: remaining,
		SubscriptionBillingCycle:      subscriptionModel.BillingMonthly,
		SubscriptionPriceAmount:       500_000,
		SubscriptionPriceCurrency:     "IDR",
		SubscriptionStatus:            subscriptionModel.SubscriptionActive,
		SubscriptionEndDate:           &end,
	}
	require.NoError(t, db.Create(&sub).Error)
	return &sub
}

func seedSession(t *testing.T, db *gorm.DB, schoolID uuid.UUID, subID *uuid.UUID, status model.SessionStatus, start time.Time) *model.ClassSessionModel {
	t.Helper()
	kind := model.SessionKindCourse
	if subID != nil {
		kind = model.SessionKindPrivate
	}
	sess := model.ClassSessionModel{
		ClassSessionSchoolID:        schoolID,
		ClassSessionKind:            kind,
		ClassSessionTeacherID:       uuid.New(),
		ClassSessionSubscriptionID:  subID,
		ClassSessionScheduledStart:  start,
		ClassSessionDurationMinutes: 30,
		ClassSessionStatus:          status,
	}
	if status == model.SessionLive || status == model.SessionPaused {
		sess.ClassSessionStartedAt = &start
	}
	require.NoError(t, db.Create(&sess).Error)
	return &sess
}

func TestScheduleRejectsPastStart(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	_, err := svc.Schedule(context.Background(), ScheduleInput{
		SchoolID:        uuid.New(),
		Kind:            model.SessionKindCourse,
		TeacherID:       uuid.New(),
		ScheduledStart:  now.Add(-time.Hour),
		DurationMinutes: 30,
	}, now)
	assert.ErrorIs(t, err, ErrPastSchedule)
}

func TestScheduleBlockedWhenSubscriptionSuspended(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	sub := seedActiveSubscription(t, db, schoolID, 5)
	require.NoError(t, db.Model(sub).
		Update("subscription_status", subscriptionModel.SubscriptionSuspended).Error)

	_, err := svc.Schedule(context.Background(), ScheduleInput{
		SchoolID:        schoolID,
		Kind:            model.SessionKindPrivate,
		TeacherID:       uuid.New(),
		SubscriptionID:  &sub.SubscriptionID,
		ScheduledStart:  now.Add(time.Hour),
		DurationMinutes: 30,
	}, now)
	assert.ErrorIs(t, err, ErrSchedulingBlocked)
}

func TestScheduleBlockedWhenQuotaExhausted(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	sub := seedActiveSubscription(t, db, schoolID, 0)

	_, err := svc.Schedule(context.Background(), ScheduleInput{
		SchoolID:        schoolID,
		Kind:            model.SessionKindPrivate,
		TeacherID:       uuid.New(),
		SubscriptionID:  &sub.SubscriptionID,
		ScheduledStart:  now.Add(time.Hour),
		DurationMinutes: 30,
	}, now)
	assert.ErrorIs(t, err, ErrSchedulingBlocked)
}

func TestScheduleBeforeSubscriptionStartBlocked(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	sub := seedActiveSubscription(t, db, schoolID, 5)
	futureStart := now.AddDate(0, 0, 7)
	require.NoError(t, db.Model(sub).
		Update("subscription_start_date", futureStart).Error)

	_, err := svc.Schedule(context.Background(), ScheduleInput{
		SchoolID:        schoolID,
		Kind:            model.SessionKindPrivate,
		TeacherID:       uuid.New(),
		SubscriptionID:  &sub.SubscriptionID,
		ScheduledStart:  now.Add(time.Hour), // sebelum periode mulai
		DurationMinutes: 30,
	}, now)
	assert.ErrorIs(t, err, ErrSchedulingBlocked)
}

func TestScheduleGraceStillAllowed(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	sub := seedActiveSubscription(t, db, schoolID, 5)
	require.NoError(t, db.Model(sub).
		Update("subscription_status", subscriptionModel.SubscriptionGrace).Error)

	sess, err := svc.Schedule(context.Background(), ScheduleInput{
		SchoolID:        schoolID,
		Kind:            model.SessionKindPrivate,
		TeacherID:       uuid.New(),
		SubscriptionID:  &sub.SubscriptionID,
		ScheduledStart:  now.Add(time.Hour),
		DurationMinutes: 30,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, model.SessionScheduled, sess.ClassSessionStatus)
	assert.NotEmpty(t, sess.ClassSessionCode)
}

func TestActivateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedSession(t, db, schoolID, nil, model.SessionScheduled, start)

	now := start.Add(time.Minute)
	first, err := svc.Activate(context.Background(), schoolID, sess.ClassSessionID, now)
	require.NoError(t, err)
	assert.Equal(t, model.SessionLive, first.ClassSessionStatus)
	startedAt := *first.ClassSessionStartedAt

	// re-invocation → no-op sukses, started_at tidak bergeser
	second, err := svc.Activate(context.Background(), schoolID, sess.ClassSessionID, now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.SessionLive, second.ClassSessionStatus)
	assert.Equal(t, startedAt.UTC(), second.ClassSessionStartedAt.UTC())
}

func TestActivateBeforeScheduleFails(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedSession(t, db, schoolID, nil, model.SessionScheduled, start)

	_, err := svc.Activate(context.Background(), schoolID, sess.ClassSessionID, start.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrPastSchedule)
}

func TestCompleteFromScheduledFails(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedSession(t, db, schoolID, nil, model.SessionScheduled, start)

	_, err := svc.Complete(context.Background(), schoolID, sess.ClassSessionID, start.Add(30*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteDecrementsQuota(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	sub := seedActiveSubscription(t, db, schoolID, 5)
	sess := seedSession(t, db, schoolID, &sub.SubscriptionID, model.SessionLive, start)

	done, err := svc.Complete(context.Background(), schoolID, sess.ClassSessionID, start.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, done.ClassSessionStatus)
	assert.True(t, done.ClassSessionQuotaCounted)

	var got subscriptionModel.SubscriptionModel
	require.NoError(t, db.Where("subscription_id = ?", sub.SubscriptionID).First(&got).Error)
	assert.Equal(t, 4, got.SubscriptionSessionsRemaining)
}

// Dua Complete paralel untuk sesi yang sama: kuota turun TEPAT satu kali.
// Kalah lomba boleh dapat ErrInvalidTransition (sesi sudah completed) atau
// busy dari sqlite; yang dicek adalah hasil akhirnya.
func TestCompleteConcurrentDecrementsOnce(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	sub := seedActiveSubscription(t, db, schoolID, 5)
	sess := seedSession(t, db, schoolID, &sub.SubscriptionID, model.SessionLive, start)

	startLine := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-startLine
			for attempt := 0; attempt < 20; attempt++ {
				_, err := svc.Complete(context.Background(), schoolID, sess.ClassSessionID, start.Add(30*time.Minute))
				if err == nil || errors.Is(err, ErrInvalidTransition) {
					return
				}
				time.Sleep(5 * time.Millisecond) // lock contention → coba lagi
			}
		}()
	}
	close(startLine)
	wg.Wait()

	var gotSess model.ClassSessionModel
	require.NoError(t, db.Where("class_session_id = ?", sess.ClassSessionID).First(&gotSess).Error)
	assert.Equal(t, model.SessionCompleted, gotSess.ClassSessionStatus)
	assert.True(t, gotSess.ClassSessionQuotaCounted)

	var gotSub subscriptionModel.SubscriptionModel
	require.NoError(t, db.Where("subscription_id = ?", sub.SubscriptionID).First(&gotSub).Error)
	assert.Equal(t, 4, gotSub.SubscriptionSessionsRemaining)
}

func TestCancelCompletedKeepsFields(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	sub := seedActiveSubscription(t, db, schoolID, 5)
	sess := seedSession(t, db, schoolID, &sub.SubscriptionID, model.SessionLive, start)

	done, err := svc.Complete(context.Background(), schoolID, sess.ClassSessionID, start.Add(30*time.Minute))
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), schoolID, sess.ClassSessionID, "salah pencet", uuid.New(), start.Add(time.Hour))
	assert.ErrorIs(t, err, ErrPastSchedule)

	// field completion tidak berubah, quota tidak dikembalikan
	var got model.ClassSessionModel
	require.NoError(t, db.Where("class_session_id = ?", sess.ClassSessionID).First(&got).Error)
	assert.Equal(t, model.SessionCompleted, got.ClassSessionStatus)
	assert.Equal(t, done.ClassSessionEndedAt.UTC(), got.ClassSessionEndedAt.UTC())
	assert.Nil(t, got.ClassSessionCanceledAt)
	assert.True(t, got.ClassSessionQuotaCounted)
}

func TestCancelCanceledFails(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedSession(t, db, schoolID, nil, model.SessionScheduled, start)

	_, err := svc.Cancel(context.Background(), schoolID, sess.ClassSessionID, "murid sakit", uuid.New(), start)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), schoolID, sess.ClassSessionID, "lagi", uuid.New(), start)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRescheduleOnlyFromScheduled(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedSession(t, db, schoolID, nil, model.SessionLive, start)

	_, err := svc.Reschedule(context.Background(), schoolID, sess.ClassSessionID, start.Add(24*time.Hour), "pindah hari", start)
	assert.ErrorIs(t, err, ErrNotReschedulable)
}

func TestRescheduleKeepsOriginalStart(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	now := start.Add(-24 * time.Hour)
	sess := seedSession(t, db, schoolID, nil, model.SessionScheduled, start)

	second := start.Add(24 * time.Hour)
	moved, err := svc.Reschedule(context.Background(), schoolID, sess.ClassSessionID, second, "guru berhalangan", now)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.ClassSessionRescheduleCount)
	assert.Equal(t, start.UTC(), moved.ClassSessionOriginalStart.UTC())

	third := start.Add(48 * time.Hour)
	moved, err = svc.Reschedule(context.Background(), schoolID, sess.ClassSessionID, third, "masih berhalangan", now)
	require.NoError(t, err)
	assert.Equal(t, 2, moved.ClassSessionRescheduleCount)
	// original_start hanya di-set sekali, di reschedule pertama
	assert.Equal(t, start.UTC(), moved.ClassSessionOriginalStart.UTC())
	assert.Equal(t, third.UTC(), moved.ClassSessionScheduledStart.UTC())
}

func TestRescheduleOutsideSubscriptionRange(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	now := start.Add(-24 * time.Hour)

	sub := seedActiveSubscription(t, db, schoolID, 5)
	sess := seedSession(t, db, schoolID, &sub.SubscriptionID, model.SessionScheduled, start)

	afterEnd := sub.SubscriptionEndDate.Add(24 * time.Hour)
	_, err := svc.Reschedule(context.Background(), schoolID, sess.ClassSessionID, afterEnd, "mundur jauh", now)
	assert.ErrorIs(t, err, ErrNotReschedulable)
}

func TestPauseResume(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedSession(t, db, schoolID, nil, model.SessionLive, start)

	paused, err := svc.Pause(context.Background(), schoolID, sess.ClassSessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionPaused, paused.ClassSessionStatus)

	// pause dobel → conflict
	_, err = svc.Pause(context.Background(), schoolID, sess.ClassSessionID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	resumed, err := svc.Resume(context.Background(), schoolID, sess.ClassSessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionLive, resumed.ClassSessionStatus)
}

func TestTenantScopeOnTransitions(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedSession(t, db, schoolID, nil, model.SessionScheduled, start)

	// school lain tidak boleh menyentuh sesi ini
	_, err := svc.Activate(context.Background(), uuid.New(), sess.ClassSessionID, start)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestActivateDueSessions(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	due := seedSession(t, db, schoolID, nil, model.SessionScheduled, now.Add(-5*time.Minute))
	notYet := seedSession(t, db, schoolID, nil, model.SessionScheduled, now.Add(30*time.Minute))

	n, err := svc.ActivateDueSessions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got model.ClassSessionModel
	require.NoError(t, db.Where("class_session_id = ?", due.ClassSessionID).First(&got).Error)
	assert.Equal(t, model.SessionLive, got.ClassSessionStatus)

	var gotNotYet model.ClassSessionModel
	require.NoError(t, db.Where("class_session_id = ?", notYet.ClassSessionID).First(&gotNotYet).Error)
	assert.Equal(t, model.SessionScheduled, gotNotYet.ClassSessionStatus)
}

func TestAutoCompleteOverrun(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()

	// sesi 10:00 + 30m; buffer policy 10m; tick 10:45 → auto-complete di 10:30
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedSession(t, db, schoolID, nil, model.SessionLive, start)

	tick := time.Date(2026, 3, 2, 10, 45, 0, 0, time.UTC)
	n, err := svc.AutoCompleteOverrun(context.Background(), tick)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got model.ClassSessionModel
	require.NoError(t, db.Where("class_session_id = ?", sess.ClassSessionID).First(&got).Error)
	assert.Equal(t, model.SessionCompleted, got.ClassSessionStatus)
	// ended_at = akhir jadwal, bukan waktu tick
	assert.Equal(t, start.Add(30*time.Minute).UTC(), got.ClassSessionEndedAt.UTC())
}

func TestAutoCompleteWithinBufferUntouched(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(db)
	schoolID := uuid.New()

	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedSession(t, db, schoolID, nil, model.SessionLive, start)

	// 10:35 masih di dalam buffer (deadline 10:40)
	tick := time.Date(2026, 3, 2, 10, 35, 0, 0, time.UTC)
	n, err := svc.AutoCompleteOverrun(context.Background(), tick)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var got model.ClassSessionModel
	require.NoError(t, db.Where("class_session_id = ?", sess.ClassSessionID).First(&got).Error)
	assert.Equal(t, model.SessionLive, got.ClassSessionStatus)
}
