package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/command"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/types"
	"github.com/BrandonDHaskell/cherrydoor/internal/logger"
)

// ErrLinkUnavailable is returned by Send when the frame could not be written
// to the device.
var ErrLinkUnavailable = errors.New("link unavailable")

// FrameSender writes one encoded frame to the device.
type FrameSender interface {
	Send(frame string) error
}

type CommandService struct {
	deviceID string
	link     FrameSender
	commands store.CommandStore
	log      *logger.Logger
}

func NewCommandService(deviceID string, link FrameSender, cs store.CommandStore, log *logger.Logger) *CommandService {
	return &CommandService{
		deviceID: deviceID,
		link:     link,
		commands: cs,
		log:      log.With("component", "command_service", "device_id", deviceID),
	}
}

// Send encodes cmd, writes it to the link and records the outcome. A
// conflicting command is recorded as rejected and its *command.BuildError is
// returned unchanged.
func (s *CommandService) Send(ctx context.Context, cmd command.Command) (types.CommandResponse, error) {
	now := time.Now().UTC()

	rec := store.CommandRecord{
		FrameID:     uuid.NewString(),
		DeviceID:    s.deviceID,
		RequestedAt: now,
		Mask:        cmd.Mask(),
	}
	if payload, err := json.Marshal(cmd); err == nil {
		rec.Payload = payload
	}

	frame, err := cmd.Encode()
	if err != nil {
		rec.Error = err.Error()
		s.record(ctx, rec)
		s.log.Infow("command rejected", "frame_id", rec.FrameID, "mask", rec.Mask, "error", err)
		return types.CommandResponse{}, err
	}
	rec.Frame = frame

	if err := s.link.Send(frame); err != nil {
		rec.Error = err.Error()
		s.record(ctx, rec)
		s.log.Errorw("frame not sent", "frame_id", rec.FrameID, "frame", frame, "error", err)
		return types.CommandResponse{}, fmt.Errorf("%w: %w", ErrLinkUnavailable, err)
	}

	rec.Sent = true
	s.record(ctx, rec)
	s.log.Infow("frame sent", "frame_id", rec.FrameID, "frame", frame)

	return types.CommandResponse{
		OK:       true,
		FrameID:  rec.FrameID,
		DeviceID: s.deviceID,
		Frame:    frame,
		Mask:     rec.Mask,
		SentAt:   now.Format(time.RFC3339Nano),
	}, nil
}

// Recent returns up to limit recorded frames, newest first.
func (s *CommandService) Recent(ctx context.Context, limit int) ([]store.CommandRecord, error) {
	return s.commands.Recent(ctx, s.deviceID, limit)
}

// record appends to the audit log. A failed write is logged and does not
// fail the command: the frame has already reached the device.
func (s *CommandService) record(ctx context.Context, rec store.CommandRecord) {
	if err := s.commands.RecordCommand(ctx, rec); err != nil {
		s.log.Errorw("record command", "frame_id", rec.FrameID, "error", err)
	}
}
