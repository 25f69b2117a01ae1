// file: internals/features/home/notifications/service/notifier.go
package service

import (
	"context"
	"log"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tutorhub_backend/internals/features/home/notifications/model"
)

type NotifyInput struct {
	SchoolID    uuid.UUID
	RecipientID uuid.UUID
	Kind        string
	Title       string
	Body        string
	Tags        []string
	Context     map[string]any
}

// Notifier adalah capability keluar engine (session scheduled/canceled/completed,
// attendance marked, renewal success/failure/grace/suspension).
type Notifier interface {
	Send(ctx context.Context, in NotifyInput) error
}

/*
=========================================================

	DBNotifier — tulis baris notifications + log.
	Delivery channel (push/email) membaca tabel ini, di luar scope engine.
	=========================================================
*/
type DBNotifier struct {
	DB *gorm.DB
}

func NewDBNotifier(db *gorm.DB) *DBNotifier {
	return &DBNotifier{DB: db}
}

func (n *DBNotifier) Send(ctx context.Context, in NotifyInput) error {
	var payload datatypes.JSON
	if in.Context != nil {
		raw, err := sonic.Marshal(in.Context)
		if err != nil {
			log.Printf("[NOTIFY ERROR] gagal marshal context kind=%s: %v", in.Kind, err)
		} else {
			payload = datatypes.JSON(raw)
		}
	}

	row := model.NotificationModel{
		NotificationSchoolID:    in.SchoolID,
		NotificationRecipientID: in.RecipientID,
		NotificationKind:        in.Kind,
		NotificationTitle:       in.Title,
		NotificationBody:        in.Body,
		NotificationTags:        in.Tags,
		NotificationContext:     payload,
	}

	if err := n.DB.WithContext(ctx).Create(&row).Error; err != nil {
		// notifikasi tidak boleh menggagalkan operasi utama
		log.Printf("[NOTIFY ERROR] gagal simpan notifikasi kind=%s recipient=%s: %v", in.Kind, in.RecipientID, err)
		return err
	}

	log.Printf("[NOTIFY] kind=%s recipient=%s title=%q", in.Kind, in.RecipientID, in.Title)
	return nil
}

// NoopNotifier dipakai test & bootstrap sebelum DB siap.
type NoopNotifier struct{}

func (NoopNotifier) Send(ctx context.Context, in NotifyInput) error { return nil }
