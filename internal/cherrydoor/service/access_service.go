package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/command"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/types"
	"github.com/BrandonDHaskell/cherrydoor/internal/logger"
)

var ErrInvalidCardCode = errors.New("card_code must be 8 characters")

// Sound IDs played by the controller on a decision.
const (
	soundGranted int32 = 1
	soundDenied  int32 = 2
)

const (
	defaultOpenSeconds = 5
	deniedSignalTime   = 3
)

type AccessPolicy struct {
	AllowAll     bool
	AllowedCodes map[string]struct{}

	// OpenSeconds is how long the door stays open on a grant. Defaults
	// to 5.
	OpenSeconds int32
}

// CommandSender is satisfied by *CommandService.
type CommandSender interface {
	Send(ctx context.Context, cmd command.Command) (types.CommandResponse, error)
}

// HeartbeatSubscriber is satisfied by *HeartbeatMonitor.
type HeartbeatSubscriber interface {
	Subscribe() (<-chan heartbeat.Heartbeat, func())
}

// AccessService decides whether a presented card opens the door and
// answers the reader: green and open on a grant, red on a denial.
type AccessService struct {
	deviceID string
	policy   AccessPolicy
	commands CommandSender
	events   store.AccessEventStore
	log      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewAccessService(deviceID string, policy AccessPolicy, cs CommandSender, es store.AccessEventStore, log *logger.Logger) *AccessService {
	if policy.OpenSeconds <= 0 {
		policy.OpenSeconds = defaultOpenSeconds
	}
	return &AccessService{
		deviceID: deviceID,
		policy:   policy,
		commands: cs,
		events:   es,
		log:      log.With("component", "access_service", "device_id", deviceID),
	}
}

// Decide applies the policy to code and sends the answering frame. The
// decision is returned even when the frame could not be sent; err then
// carries the send failure.
func (s *AccessService) Decide(ctx context.Context, code string) (types.AccessResponse, error) {
	now := time.Now().UTC()

	code = strings.TrimSpace(code)
	if len(code) != heartbeat.CodeLength {
		return types.AccessResponse{}, ErrInvalidCardCode
	}

	granted := false
	reason := "card_not_allowed"
	switch {
	case s.policy.AllowAll:
		granted, reason = true, "allow_all"
	default:
		if _, ok := s.policy.AllowedCodes[code]; ok {
			granted, reason = true, "card_allowed"
		}
	}

	resp, sendErr := s.commands.Send(ctx, s.answer(granted))

	s.recordEvent(ctx, code, granted, reason, resp.FrameID, now)
	s.log.Infow("access decision", "granted", granted, "reason", reason, "frame_id", resp.FrameID)

	return types.AccessResponse{
		OK:         sendErr == nil,
		Granted:    granted,
		Reason:     reason,
		DeviceID:   s.deviceID,
		FrameID:    resp.FrameID,
		ServerTime: now.Format(time.RFC3339Nano),
	}, sendErr
}

func (s *AccessService) answer(granted bool) command.Command {
	if granted {
		open := s.policy.OpenSeconds
		return command.New().
			OpenFor(open).
			SetColorFor(0, 255, 0, open).
			PlaySound(soundGranted)
	}
	return command.New().
		SetColorFor(255, 0, 0, deniedSignalTime).
		PlaySound(soundDenied)
}

// recordEvent appends to the audit log. A failed write does not change the
// decision already sent to the door.
func (s *AccessService) recordEvent(ctx context.Context, code string, granted bool, reason, frameID string, decidedAt time.Time) {
	sum := sha256.Sum256([]byte(code))
	err := s.events.RecordEvent(ctx, store.AccessEventRecord{
		DeviceID:     s.deviceID,
		CardCodeHash: sum[:],
		Granted:      granted,
		Reason:       reason,
		FrameID:      frameID,
		DecidedAt:    decidedAt,
	})
	if err != nil {
		s.log.Errorw("record access event", "error", err)
	}
}

// Start decides on every card newly presented in the heartbeat stream. A
// card held on the reader is decided once; it must be removed before it is
// decided again.
func (s *AccessService) Start(ctx context.Context, src HeartbeatSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	updates, unsubscribe := src.Subscribe()
	go s.watch(ctx, updates, unsubscribe, s.done)
}

func (s *AccessService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *AccessService) watch(ctx context.Context, updates <-chan heartbeat.Heartbeat, unsubscribe func(), done chan struct{}) {
	defer close(done)
	defer unsubscribe()

	var present string
	for {
		select {
		case <-ctx.Done():
			return
		case hb, ok := <-updates:
			if !ok {
				return
			}
			// A failed read says nothing about the reader.
			if hb.Status.Controller.IsErr() || hb.Code == present {
				continue
			}
			present = hb.Code
			if !hb.HasCode() {
				continue
			}
			if _, err := s.Decide(ctx, hb.Code); err != nil {
				s.log.Warnw("access answer not delivered", "error", err)
			}
		}
	}
}
