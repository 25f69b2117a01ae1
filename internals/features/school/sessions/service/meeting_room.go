// file: internals/features/school/sessions/service/meeting_room.go
package service

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// MeetingProvider: collaborator eksternal untuk room meeting.
// Dipanggil saat activate (create) dan complete/cancel (close).
// Kegagalan provider TIDAK menggagalkan transisi status — hanya di-log.
type MeetingProvider interface {
	CreateRoom(ctx context.Context, sessionID uuid.UUID) (roomID, roomURL string, err error)
	CloseRoom(ctx context.Context, roomID string) error
}

/*
=========================================================

	HTTPMeetingProvider — API provider meeting (timeout ketat,
	tidak boleh blocking tanpa batas).
	=========================================================
*/
type HTTPMeetingProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPMeetingProvider(baseURL, apiKey string) *HTTPMeetingProvider {
	return &HTTPMeetingProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (p *HTTPMeetingProvider) CreateRoom(ctx context.Context, sessionID uuid.UUID) (string, string, error) {
	body, _ := sonic.Marshal(map[string]string{"session_id": sessionID.String()})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("meeting provider returned %d", resp.StatusCode)
	}

	var out struct {
		RoomID  string `json:"room_id"`
		RoomURL string `json:"room_url"`
	}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", err
	}
	return out.RoomID, out.RoomURL, nil
}

func (p *HTTPMeetingProvider) CloseRoom(ctx context.Context, roomID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.BaseURL+"/rooms/"+roomID, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("meeting provider returned %d", resp.StatusCode)
	}
	return nil
}

// NoopMeetingProvider: dipakai saat MEETING_API_BASE_URL kosong & di test.
type NoopMeetingProvider struct{}

func (NoopMeetingProvider) CreateRoom(ctx context.Context, sessionID uuid.UUID) (string, string, error) {
	return "room-" + sessionID.String()[:8], "", nil
}

func (NoopMeetingProvider) CloseRoom(ctx context.Context, roomID string) error { return nil }
