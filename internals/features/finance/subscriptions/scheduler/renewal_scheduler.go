// file: internals/features/finance/subscriptions/scheduler/renewal_scheduler.go
package scheduler

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"tutorhub_backend/internals/features/finance/subscriptions/service"
)

// StartRenewalScheduler: sweep periodik renewal engine.
// State renewal persisted di tabel subscriptions, bukan timer in-memory —
// restart proses tidak menghilangkan retry/grace yang sedang berjalan.
func StartRenewalScheduler(renewal *service.RenewalService) {
	go func() {
		intervalMin := 60
		if val := os.Getenv("RENEWAL_SWEEP_INTERVAL_MINUTES"); val != "" {
			if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
				intervalMin = parsed
			}
		}

		for {
			ctx := context.Background()
			now := time.Now()

			log.Println("[RENEWAL] Menjalankan sweep renewal...")

			if n, err := renewal.ProcessDueRenewals(ctx, now); err != nil {
				log.Printf("[RENEWAL ERROR] proses renewal gagal: %v", err)
			} else if n > 0 {
				log.Printf("[RENEWAL] %d subscription diproses", n)
			}

			if n, err := renewal.ExpireGracePeriods(ctx, now); err != nil {
				log.Printf("[RENEWAL ERROR] expire grace gagal: %v", err)
			} else if n > 0 {
				log.Printf("[RENEWAL] %d subscription di-suspend (grace habis)", n)
			}

			if n, err := renewal.ExpireLapsed(ctx, now); err != nil {
				log.Printf("[RENEWAL ERROR] expire lapsed gagal: %v", err)
			} else if n > 0 {
				log.Printf("[RENEWAL] %d subscription expired (non auto-renew)", n)
			}

			time.Sleep(time.Duration(intervalMin) * time.Minute)
		}
	}()
}
