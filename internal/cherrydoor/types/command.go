package types

import (
	"encoding/json"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
)

type CommandResponse struct {
	OK       bool   `json:"ok"`
	FrameID  string `json:"frame_id"`
	DeviceID string `json:"device_id"`
	Frame    string `json:"frame"`
	Mask     uint16 `json:"mask"`
	SentAt   string `json:"sent_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CommandRecordView is one entry of the outbound frame log.
type CommandRecordView struct {
	FrameID     string          `json:"frame_id"`
	RequestedAt string          `json:"requested_at"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Frame       string          `json:"frame,omitempty"`
	Mask        uint16          `json:"mask"`
	Sent        bool            `json:"sent"`
	Error       string          `json:"error,omitempty"`
}

func NewCommandRecordView(rec store.CommandRecord) CommandRecordView {
	return CommandRecordView{
		FrameID:     rec.FrameID,
		RequestedAt: rec.RequestedAt.UTC().Format(time.RFC3339Nano),
		Payload:     json.RawMessage(rec.Payload),
		Frame:       rec.Frame,
		Mask:        rec.Mask,
		Sent:        rec.Sent,
		Error:       rec.Error,
	}
}
