package types

import (
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
)

type SubsystemStatus struct {
	State  string `json:"state"` // "ok" | "err" | "unknown"
	Reason string `json:"reason,omitempty"`
}

// HeartbeatView is the JSON form of a heartbeat served to clients.
type HeartbeatView struct {
	DeviceID   string                     `json:"device_id"`
	Status     map[string]SubsystemStatus `json:"status"`
	Code       *string                    `json:"code"`
	Health     string                     `json:"health,omitempty"`
	Timestamp  int64                      `json:"timestamp"`
	AllOK      bool                       `json:"all_ok"`
	CapturedAt string                     `json:"captured_at"`
}

func NewHeartbeatView(deviceID string, h heartbeat.Heartbeat) HeartbeatView {
	status := make(map[string]SubsystemStatus, 5)
	for _, s := range h.Status.Subsystems() {
		status[s.Name] = SubsystemStatus{State: s.Status.State.String(), Reason: s.Status.Reason}
	}

	var code *string
	if h.HasCode() {
		c := h.Code
		code = &c
	}

	return HeartbeatView{
		DeviceID:   deviceID,
		Status:     status,
		Code:       code,
		Health:     h.Health,
		Timestamp:  h.Timestamp,
		AllOK:      h.AllOK(),
		CapturedAt: h.Time().Format(time.RFC3339),
	}
}

// StoredHeartbeatView is a HeartbeatView with the time it was recorded.
type StoredHeartbeatView struct {
	HeartbeatView
	ReceivedAt string `json:"received_at"`
}

func NewStoredHeartbeatView(rec store.HeartbeatRecord) StoredHeartbeatView {
	return StoredHeartbeatView{
		HeartbeatView: NewHeartbeatView(rec.DeviceID, rec.Heartbeat),
		ReceivedAt:    rec.ReceivedAt.UTC().Format(time.RFC3339Nano),
	}
}
