package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tutorhub_backend/internals/configs"
	notifService "tutorhub_backend/internals/features/home/notifications/service"
	"tutorhub_backend/internals/features/school/attendance/model"
	sessionModel "tutorhub_backend/internals/features/school/sessions/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&sessionModel.ClassSessionModel{},
		&model.AttendanceRecordModel{},
		&model.AttendanceEventModel{},
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

func seedCompletedSession(t *testing.T, db *gorm.DB, start time.Time, durationMin int) *sessionModel.ClassSessionModel {
	t.Helper()
	end := start.Add(time.Duration(durationMin) * time.Minute)
	sess := sessionModel.ClassSessionModel{
		ClassSessionSchoolID:        uuid.New(),
		ClassSessionKind:            sessionModel.SessionKindCourse,
		ClassSessionTeacherID:       uuid.New(),
		ClassSessionScheduledStart:  start,
		ClassSessionDurationMinutes: durationMin,
		ClassSessionStatus:          sessionModel.SessionCompleted,
		ClassSessionEndedAt:         &end,
	}
	require.NoError(t, db.Create(&sess).Error)
	return &sess
}

func ev(sessionID, participantID, schoolID uuid.UUID, kind model.AttendanceEventKind, at time.Time) model.AttendanceEventModel {
	return model.AttendanceEventModel{
		AttendanceEventSchoolID:      schoolID,
		AttendanceEventSessionID:     sessionID,
		AttendanceEventParticipantID: participantID,
		AttendanceEventKind:          kind,
		AttendanceEventOccurredAt:    at,
	}
}

func TestSummarizeEventsPairsIntervals(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)
	sid, pid, school := uuid.New(), uuid.New(), uuid.New()

	events := []model.AttendanceEventModel{
		ev(sid, pid, school, model.AttendanceEventJoined, start),
		ev(sid, pid, school, model.AttendanceEventLeft, start.Add(20*time.Minute)),
		ev(sid, pid, school, model.AttendanceEventJoined, start.Add(30*time.Minute)),
		ev(sid, pid, school, model.AttendanceEventLeft, start.Add(60*time.Minute)),
	}

	sum := SummarizeEvents(events, end)
	assert.Equal(t, 50*time.Minute, sum.Duration)
	assert.Equal(t, start, *sum.JoinAt)
	assert.Equal(t, end, *sum.LeaveAt)
	assert.False(t, sum.HasDanglingJoin)
}

func TestSummarizeEventsOutOfOrderDelivery(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)
	sid, pid, school := uuid.New(), uuid.New(), uuid.New()

	// left datang sebelum joined (delivery tidak berurutan)
	events := []model.AttendanceEventModel{
		ev(sid, pid, school, model.AttendanceEventLeft, start.Add(40*time.Minute)),
		ev(sid, pid, school, model.AttendanceEventJoined, start.Add(5*time.Minute)),
	}

	sum := SummarizeEvents(events, end)
	assert.Equal(t, 35*time.Minute, sum.Duration)
	assert.False(t, sum.HasDanglingJoin)
}

func TestSummarizeEventsDanglingJoinClosedAtEnd(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)
	sid, pid, school := uuid.New(), uuid.New(), uuid.New()

	events := []model.AttendanceEventModel{
		ev(sid, pid, school, model.AttendanceEventJoined, start.Add(10*time.Minute)),
	}

	sum := SummarizeEvents(events, end)
	assert.True(t, sum.HasDanglingJoin)
	assert.Equal(t, 50*time.Minute, sum.Duration)
	assert.Equal(t, end, *sum.LeaveAt)
}

func TestSummarizeEventsDoubleJoinUsesFirst(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)
	sid, pid, school := uuid.New(), uuid.New(), uuid.New()

	// reconnect: joined kedua tanpa left di antaranya
	events := []model.AttendanceEventModel{
		ev(sid, pid, school, model.AttendanceEventJoined, start),
		ev(sid, pid, school, model.AttendanceEventJoined, start.Add(15*time.Minute)),
		ev(sid, pid, school, model.AttendanceEventLeft, start.Add(50*time.Minute)),
	}

	sum := SummarizeEvents(events, end)
	assert.Equal(t, 50*time.Minute, sum.Duration)
	assert.Equal(t, start, *sum.JoinAt)
}

func TestClassify(t *testing.T) {
	policy := testPolicy()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(60 * time.Minute)

	ptr := func(t time.Time) *time.Time { return &t }

	cases := []struct {
		name string
		sum  EventSummary
		want model.AttendanceStatus
	}{
		{"tanpa join sama sekali", EventSummary{}, model.AttendanceAbsent},
		{"durasi di bawah minimum", EventSummary{
			JoinAt: ptr(start), LeaveAt: ptr(start.Add(3 * time.Minute)), Duration: 3 * time.Minute,
		}, model.AttendanceAbsent},
		{"join lewat masa tenggang", EventSummary{
			JoinAt: ptr(start.Add(15 * time.Minute)), LeaveAt: ptr(end), Duration: 45 * time.Minute,
		}, model.AttendanceLate},
		{"pulang lebih awal", EventSummary{
			JoinAt: ptr(start), LeaveAt: ptr(start.Add(30 * time.Minute)), Duration: 30 * time.Minute,
		}, model.AttendanceLeftEarly},
		{"hadir penuh", EventSummary{
			JoinAt: ptr(start), LeaveAt: ptr(end), Duration: 60 * time.Minute,
		}, model.AttendancePresent},
		{"telat menang atas pulang awal", EventSummary{
			JoinAt: ptr(start.Add(20 * time.Minute)), LeaveAt: ptr(start.Add(40 * time.Minute)), Duration: 20 * time.Minute,
		}, model.AttendanceLate},
		{"tepat di batas tenggang masih on-time", EventSummary{
			JoinAt: ptr(start.Add(10 * time.Minute)), LeaveAt: ptr(end), Duration: 50 * time.Minute,
		}, model.AttendancePresent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(policy, start, end, tc.sum))
		})
	}
}

func TestAggregateSessionReplayIdempotent(t *testing.T) {
	db := newTestDB(t)
	policy := testPolicy()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedCompletedSession(t, db, start, 60)
	pid := uuid.New()

	events := []model.AttendanceEventModel{
		ev(sess.ClassSessionID, pid, sess.ClassSessionSchoolID, model.AttendanceEventJoined, start),
		ev(sess.ClassSessionID, pid, sess.ClassSessionSchoolID, model.AttendanceEventLeft, start.Add(60*time.Minute)),
	}
	for i := range events {
		require.NoError(t, db.Create(&events[i]).Error)
	}

	require.NoError(t, AggregateSession(db, sess, policy))
	require.NoError(t, AggregateSession(db, sess, policy))
	require.NoError(t, AggregateSession(db, sess, policy))

	var recs []model.AttendanceRecordModel
	require.NoError(t, db.Where("attendance_record_session_id = ?", sess.ClassSessionID).Find(&recs).Error)
	require.Len(t, recs, 1)
	assert.Equal(t, model.AttendancePresent, recs[0].AttendanceRecordStatus)
	assert.Equal(t, 3600, recs[0].AttendanceRecordAutoDurationSeconds)
	assert.True(t, recs[0].AttendanceRecordAutoTracked)
}

func TestAggregateSessionSkipsManualOverride(t *testing.T) {
	db := newTestDB(t)
	policy := testPolicy()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedCompletedSession(t, db, start, 60)
	pid := uuid.New()

	// guru sudah mengoreksi manual jadi present
	rec := model.AttendanceRecordModel{
		AttendanceRecordSchoolID:           sess.ClassSessionSchoolID,
		AttendanceRecordSessionID:          sess.ClassSessionID,
		AttendanceRecordParticipantID:      pid,
		AttendanceRecordManuallyOverridden: true,
		AttendanceRecordStatus:             model.AttendancePresent,
	}
	require.NoError(t, db.Create(&rec).Error)

	// event stream bilang absent (tidak ada event) — override harus menang
	require.NoError(t, AggregateSession(db, sess, policy))

	var got model.AttendanceRecordModel
	require.NoError(t, db.Where("attendance_record_id = ?", rec.AttendanceRecordID).First(&got).Error)
	assert.Equal(t, model.AttendancePresent, got.AttendanceRecordStatus)
	assert.True(t, got.AttendanceRecordManuallyOverridden)
}

func TestAggregateSessionRecordWithoutEventsIsAbsent(t *testing.T) {
	db := newTestDB(t)
	policy := testPolicy()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedCompletedSession(t, db, start, 60)
	pid := uuid.New()

	rec := model.AttendanceRecordModel{
		AttendanceRecordSchoolID:      sess.ClassSessionSchoolID,
		AttendanceRecordSessionID:     sess.ClassSessionID,
		AttendanceRecordParticipantID: pid,
		AttendanceRecordStatus:        model.AttendancePresent, // nilai lama yang salah
	}
	require.NoError(t, db.Create(&rec).Error)

	require.NoError(t, AggregateSession(db, sess, policy))

	var got model.AttendanceRecordModel
	require.NoError(t, db.Where("attendance_record_id = ?", rec.AttendanceRecordID).First(&got).Error)
	assert.Equal(t, model.AttendanceAbsent, got.AttendanceRecordStatus)
	assert.False(t, got.AttendanceRecordAutoTracked)
}

func TestRecordMeetingEventLateWebhookReaggregates(t *testing.T) {
	db := newTestDB(t)
	policy := testPolicy()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedCompletedSession(t, db, start, 60)
	pid := uuid.New()

	// webhook datang SETELAH sesi completed → verdict langsung dihitung ulang
	require.NoError(t, RecordMeetingEvent(db, MeetingEventInput{
		SchoolID:      sess.ClassSessionSchoolID,
		SessionID:     sess.ClassSessionID,
		ParticipantID: pid,
		Kind:          model.AttendanceEventJoined,
		OccurredAt:    start,
	}, policy))
	require.NoError(t, RecordMeetingEvent(db, MeetingEventInput{
		SchoolID:      sess.ClassSessionSchoolID,
		SessionID:     sess.ClassSessionID,
		ParticipantID: pid,
		Kind:          model.AttendanceEventLeft,
		OccurredAt:    start.Add(60 * time.Minute),
	}, policy))

	var got model.AttendanceRecordModel
	require.NoError(t, db.
		Where("attendance_record_session_id = ? AND attendance_record_participant_id = ?", sess.ClassSessionID, pid).
		First(&got).Error)
	assert.Equal(t, model.AttendancePresent, got.AttendanceRecordStatus)
}

func TestRecordMeetingEventUnknownSession(t *testing.T) {
	db := newTestDB(t)
	err := RecordMeetingEvent(db, MeetingEventInput{
		SessionID:     uuid.New(),
		ParticipantID: uuid.New(),
		Kind:          model.AttendanceEventJoined,
		OccurredAt:    time.Now(),
	}, testPolicy())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReconcileSynthesizesClosingEvent(t *testing.T) {
	db := newTestDB(t)
	policy := testPolicy()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	start := now.Add(-90 * time.Minute) // sesi 10:30–11:30, reconcile window 15m sudah lewat
	sess := seedCompletedSession(t, db, start, 60)
	pid := uuid.New()

	// webhook left hilang — hanya joined yang tercatat
	join := ev(sess.ClassSessionID, pid, sess.ClassSessionSchoolID, model.AttendanceEventJoined, start)
	require.NoError(t, db.Create(&join).Error)

	n, err := Reconcile(db, policy, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var synthetic model.AttendanceEventModel
	require.NoError(t, db.
		Where("attendance_event_session_id = ? AND attendance_event_kind = ?", sess.ClassSessionID, model.AttendanceEventLeft).
		First(&synthetic).Error)
	assert.Equal(t, model.AttendanceEventSourceReconciler, synthetic.AttendanceEventSourceRef)
	assert.Equal(t, sess.ClassSessionEndedAt.UTC(), synthetic.AttendanceEventOccurredAt.UTC())

	var rec model.AttendanceRecordModel
	require.NoError(t, db.
		Where("attendance_record_session_id = ? AND attendance_record_participant_id = ?", sess.ClassSessionID, pid).
		First(&rec).Error)
	assert.Equal(t, model.AttendancePresent, rec.AttendanceRecordStatus)

	// run kedua tidak menambah event lagi
	n, err = Reconcile(db, policy, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestOverrideAttendanceFreezesVerdict(t *testing.T) {
	db := newTestDB(t)
	policy := testPolicy()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	sess := seedCompletedSession(t, db, start, 60)
	pid := uuid.New()
	teacher := uuid.New()

	rec, err := OverrideAttendance(context.Background(), db, notifService.NoopNotifier{}, OverrideInput{
		SchoolID:      sess.ClassSessionSchoolID,
		SessionID:     sess.ClassSessionID,
		ParticipantID: pid,
		Status:        model.AttendancePresent,
		Reason:        "hadir offline di kelas",
		OverriddenBy:  teacher,
	})
	require.NoError(t, err)
	assert.True(t, rec.AttendanceRecordManuallyOverridden)
	assert.Equal(t, model.AttendancePresent, rec.AttendanceRecordStatus)

	// re-aggregate setelah override → verdict tidak berubah
	require.NoError(t, AggregateSession(db, sess, policy))

	var got model.AttendanceRecordModel
	require.NoError(t, db.Where("attendance_record_id = ?", rec.AttendanceRecordID).First(&got).Error)
	assert.Equal(t, model.AttendancePresent, got.AttendanceRecordStatus)
	assert.Equal(t, teacher, *got.AttendanceRecordOverriddenBy)
}

func TestOverrideAttendanceInvalidStatus(t *testing.T) {
	db := newTestDB(t)
	_, err := OverrideAttendance(context.Background(), db, notifService.NoopNotifier{}, OverrideInput{
		SchoolID:      uuid.New(),
		SessionID:     uuid.New(),
		ParticipantID: uuid.New(),
		Status:        "bolos",
		Reason:        "x",
	})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
