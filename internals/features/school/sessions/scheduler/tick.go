// file: internals/features/school/sessions/scheduler/tick.go
package scheduler

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/gorm"

	"tutorhub_backend/internals/configs"
	attendanceService "tutorhub_backend/internals/features/school/attendance/service"
	sessionService "tutorhub_backend/internals/features/school/sessions/service"
)

// StartSessionTickScheduler: tick periodik lifecycle sesi —
// auto-activate sesi yang jatuh tempo, auto-complete sesi overrun,
// lalu rekonsiliasi attendance yang menggantung.
func StartSessionTickScheduler(db *gorm.DB, svc *sessionService.SessionService, policy configs.Policy) {
	go func() {
		intervalSec := 60
		if val := os.Getenv("SESSION_TICK_INTERVAL_SECONDS"); val != "" {
			if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
				intervalSec = parsed
			}
		}

		for {
			ctx := context.Background()
			now := time.Now()

			if n, err := svc.ActivateDueSessions(ctx, now); err != nil {
				log.Printf("[TICK ERROR] auto-activate gagal: %v", err)
			} else if n > 0 {
				log.Printf("[TICK] %d sesi di-activate otomatis", n)
			}

			if n, err := svc.AutoCompleteOverrun(ctx, now); err != nil {
				log.Printf("[TICK ERROR] auto-complete gagal: %v", err)
			} else if n > 0 {
				log.Printf("[TICK] %d sesi overrun di-complete otomatis", n)
			}

			if n, err := attendanceService.Reconcile(db, policy, now); err != nil {
				log.Printf("[TICK ERROR] rekonsiliasi attendance gagal: %v", err)
			} else if n > 0 {
				log.Printf("[TICK] %d event kehadiran disintesis reconciler", n)
			}

			time.Sleep(time.Duration(intervalSec) * time.Second)
		}
	}()
}
