// file: internals/features/finance/subscriptions/service/errors.go
package service

import "errors"

var (
	// ErrChargeFailed: gateway menolak charge manual (reactivation / purchase).
	// Renewal otomatis TIDAK memakai ini — kegagalan di sana masuk retry ladder.
	ErrChargeFailed = errors.New("charge failed")

	// ErrNotSuspended: reactivation manual hanya untuk subscription suspended.
	ErrNotSuspended = errors.New("subscription is not suspended")

	// ErrQuotaNotCounted: reversal diminta untuk sesi yang belum pernah dihitung.
	ErrQuotaNotCounted = errors.New("session quota has not been counted")

	ErrSubscriptionNotFound = errors.New("subscription not found")
)
