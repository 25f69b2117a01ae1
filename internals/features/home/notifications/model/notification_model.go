package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Kind notifikasi yang dikirim engine (lihat Notifier service).
const (
	NotificationSessionScheduled  = "session_scheduled"
	NotificationSessionCanceled   = "session_canceled"
	NotificationSessionCompleted  = "session_completed"
	NotificationAttendanceMarked  = "attendance_marked"
	NotificationRenewalSuccess    = "renewal_success"
	NotificationRenewalFailed     = "renewal_failed"
	NotificationRenewalGrace      = "renewal_grace"
	NotificationRenewalSuspended  = "renewal_suspended"
	NotificationRenewalReactivate = "renewal_reactivated"
)

type NotificationModel struct {
	NotificationID          uuid.UUID      `gorm:"column:notification_id;primaryKey;type:uuid" json:"notification_id"`
	NotificationSchoolID    uuid.UUID      `gorm:"column:notification_school_id;type:uuid;not null;index" json:"notification_school_id"`
	NotificationRecipientID uuid.UUID      `gorm:"column:notification_recipient_id;type:uuid;not null;index" json:"notification_recipient_id"`
	NotificationKind        string         `gorm:"column:notification_kind;type:varchar(60);not null" json:"notification_kind"`
	NotificationTitle       string         `gorm:"column:notification_title;type:varchar(255);not null" json:"notification_title"`
	NotificationBody        string         `gorm:"column:notification_body;type:text" json:"notification_body"`
	NotificationTags        pq.StringArray `gorm:"column:notification_tags;type:text[]" json:"notification_tags"`
	NotificationContext     datatypes.JSON `gorm:"column:notification_context;type:jsonb" json:"notification_context,omitempty"`
	NotificationSentAt      *time.Time     `gorm:"column:notification_sent_at" json:"notification_sent_at,omitempty"`
	NotificationCreatedAt   time.Time      `gorm:"column:notification_created_at;autoCreateTime" json:"notification_created_at"`
	NotificationUpdatedAt   time.Time      `gorm:"column:notification_updated_at;autoUpdateTime" json:"notification_updated_at"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func (m *NotificationModel) BeforeCreate(tx *gorm.DB) error {
	if m.NotificationID == uuid.Nil {
		m.NotificationID = uuid.New()
	}
	return nil
}
