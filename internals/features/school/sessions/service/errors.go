// file: internals/features/school/sessions/service/errors.go
package service

import "errors"

// Typed results untuk pelanggaran transisi/precondition — dikembalikan ke
// caller (aksi admin/teacher) sebagai pesan penolakan, tidak pernah ditelan.
var (
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidTransition: state machine menolak transisi dari status sekarang.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrPastSchedule: precondition berbasis waktu dilanggar
	// (mis. cancel sesi yang sudah completed, activate sebelum jadwal).
	ErrPastSchedule = errors.New("time precondition violated")

	// ErrNotReschedulable: reschedule hanya dari scheduled, ke waktu valid.
	ErrNotReschedulable = errors.New("session not reschedulable")

	// ErrSchedulingBlocked: subscription suspended / quota habis.
	ErrSchedulingBlocked = errors.New("subscription does not allow scheduling")
)
