package configs

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

var (
	JWTSecret         string
	MidtransServerKey string
	MeetingAPIBaseURL string
	MeetingAPIKey     string
)

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("⚠️ Tidak menemukan .env file, menggunakan ENV dari sistem")
		} else {
			log.Println("✅ .env file berhasil dimuat!")
		}
	} else {
		log.Println("🚀 Running in Railway, menggunakan ENV dari sistem")
	}

	JWTSecret = GetEnv("JWT_SECRET")
	MidtransServerKey = GetEnv("MIDTRANS_SERVER_KEY")
	MeetingAPIBaseURL = GetEnv("MEETING_PROVIDER_BASE_URL")
	MeetingAPIKey = GetEnv("MEETING_PROVIDER_API_KEY")

	if JWTSecret == "" {
		log.Println("❌ JWT_SECRET belum diset!")
	}
	if MidtransServerKey == "" {
		log.Println("⚠️ MIDTRANS_SERVER_KEY belum diset, renewal charge akan gagal")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

func GetEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

/*
=========================================================

	Policy — ambang kebijakan sesi, attendance & billing.
	Semua nilai bisa dioverride lewat ENV (bukan hard-coded).
	=========================================================
*/
type Policy struct {
	// Attendance
	LateGraceMinutes  int // join setelah scheduled_start + grace → late
	MinPresentMinutes int // durasi total di bawah ini → absent
	LeftEarlyMinutes  int // leave lebih awal dari end - ambang → left_early

	// Session lifecycle
	OverrunBufferMinutes  int // live melewati scheduled_end + buffer → auto-complete
	ReconcileAfterMinutes int // completed tanpa "left" selama ini → sintesis closing event

	// Renewal
	RetryBackoffHours  []int // backoff attempt 1, 2 (jam)
	MaxRenewalAttempts int   // gagal ke-N → grace
	GracePeriodDays    int   // di grace lebih lama dari ini → suspended
}

func LoadPolicy() Policy {
	return Policy{
		LateGraceMinutes:      GetEnvInt("ATTENDANCE_LATE_GRACE_MINUTES", 10),
		MinPresentMinutes:     GetEnvInt("ATTENDANCE_MIN_PRESENT_MINUTES", 5),
		LeftEarlyMinutes:      GetEnvInt("ATTENDANCE_LEFT_EARLY_MINUTES", 10),
		OverrunBufferMinutes:  GetEnvInt("SESSION_OVERRUN_BUFFER_MINUTES", 10),
		ReconcileAfterMinutes: GetEnvInt("ATTENDANCE_RECONCILE_AFTER_MINUTES", 15),
		RetryBackoffHours: []int{
			GetEnvInt("RENEWAL_RETRY_BACKOFF_1_HOURS", 24),
			GetEnvInt("RENEWAL_RETRY_BACKOFF_2_HOURS", 48),
		},
		MaxRenewalAttempts: GetEnvInt("RENEWAL_MAX_ATTEMPTS", 3),
		GracePeriodDays:    GetEnvInt("RENEWAL_GRACE_PERIOD_DAYS", 3),
	}
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger() gormLogger.Interface {
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      gormLogger.Warn,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	l.LogLevel = level
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[INFO] "+msg, data...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[WARN] "+msg, data...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	log.Printf("[ERROR] "+msg, data...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()
	file := utils.FileWithLineNum()

	if err != nil {
		log.Printf("[ERROR] %s | %v | %s | %d rows | %s", file, err, elapsed, rows, sql)
	} else if elapsed > l.SlowThreshold {
		log.Printf("[SLOW SQL] %s | %s | %d rows | %s", file, elapsed, rows, sql)
	}
}
