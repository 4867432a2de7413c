package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	"github.com/BrandonDHaskell/cherrydoor/internal/link"
	"github.com/BrandonDHaskell/cherrydoor/internal/logger"
)

// LineReader yields raw heartbeat lines from the device.
type LineReader interface {
	ReadLine() (string, error)
}

// Reporter receives every heartbeat the monitor produces.
type Reporter interface {
	Report(h heartbeat.Heartbeat)
}

type MonitorConfig struct {
	DeviceID string

	// RetryInterval is the pause before reading again after the link
	// reports broken. Defaults to one second.
	RetryInterval time.Duration

	// Reporter is optional.
	Reporter Reporter
}

const subscriberBuffer = 8

// HeartbeatMonitor turns link reads into heartbeats. Every read produces
// exactly one heartbeat: a parsed one on success, otherwise an all-OK
// heartbeat annotated with the controller failure.
type HeartbeatMonitor struct {
	deviceID string
	link     LineReader
	store    store.HeartbeatStore
	reporter Reporter
	retry    time.Duration
	log      *logger.Logger

	mu      sync.RWMutex
	latest  heartbeat.Heartbeat
	subs    map[int]chan heartbeat.Heartbeat
	nextSub int

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHeartbeatMonitor(r LineReader, hs store.HeartbeatStore, cfg MonitorConfig, log *logger.Logger) *HeartbeatMonitor {
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = time.Second
	}
	return &HeartbeatMonitor{
		deviceID: cfg.DeviceID,
		link:     r,
		store:    hs,
		reporter: cfg.Reporter,
		retry:    retry,
		log:      log.With("component", "heartbeat_monitor", "device_id", cfg.DeviceID),
		latest:   heartbeat.New(),
		subs:     make(map[int]chan heartbeat.Heartbeat),
	}
}

// PollOnce performs one read and returns the resulting heartbeat together
// with the link or parse error that shaped it, if any.
//
// A failed read annotates the previous heartbeat, so the last card and
// capture time survive.
func (m *HeartbeatMonitor) PollOnce(ctx context.Context) (heartbeat.Heartbeat, error) {
	line, err := m.link.ReadLine()
	last := m.Latest()

	var hb heartbeat.Heartbeat
	switch {
	case err == nil:
		var perr error
		hb, perr = heartbeat.Parse(line)
		if perr != nil {
			m.log.Warnw("invalid heartbeat", "line", strings.TrimRight(line, "\r\n"), "error", perr)
			hb = last.WithInvalidHeartbeat()
			err = perr
		}
	case errors.Is(err, link.ErrTimeout):
		hb = last.WithConnectionTimeout()
	default:
		hb = last.WithConnectionBroken()
	}

	m.publish(ctx, hb)
	return hb, err
}

// Latest returns the most recent heartbeat. Before the first read it is an
// all-OK heartbeat with no card.
func (m *HeartbeatMonitor) Latest() heartbeat.Heartbeat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Subscribe returns a channel receiving each new heartbeat and a function
// that cancels the subscription. Slow subscribers miss heartbeats rather
// than block the monitor.
func (m *HeartbeatMonitor) Subscribe() (<-chan heartbeat.Heartbeat, func()) {
	ch := make(chan heartbeat.Heartbeat, subscriberBuffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Start runs the read loop in a goroutine until ctx is cancelled or Stop is
// called. Calling Start on a running monitor does nothing.
func (m *HeartbeatMonitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.done != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go m.loop(ctx, m.done)
	m.log.Infow("heartbeat monitor started", "retry_interval", m.retry)
}

// Stop ends the read loop and waits for the in-flight read to return.
func (m *HeartbeatMonitor) Stop() {
	m.runMu.Lock()
	cancel, done := m.cancel, m.done
	m.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *HeartbeatMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		_, err := m.PollOnce(ctx)
		if !linkBroken(err) {
			continue
		}

		t := time.NewTimer(m.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// linkBroken reports whether err came from a failed link rather than a slow
// device or a bad line.
func linkBroken(err error) bool {
	return err != nil &&
		!errors.Is(err, link.ErrTimeout) &&
		!errors.Is(err, heartbeat.ErrInvalidHeartbeat)
}

func (m *HeartbeatMonitor) publish(ctx context.Context, hb heartbeat.Heartbeat) {
	m.mu.Lock()
	m.latest = hb
	for _, ch := range m.subs {
		select {
		case ch <- hb:
		default:
		}
	}
	m.mu.Unlock()

	if m.reporter != nil {
		m.reporter.Report(hb)
	}

	if hb.AllOK() {
		m.log.Debugw("heartbeat", "code", hb.Code, "health", hb.Health)
	} else {
		m.log.Warnw("heartbeat degraded", "controller", hb.Status.Controller.String())
	}

	if err := m.store.RecordHeartbeat(ctx, store.HeartbeatRecord{
		DeviceID:   m.deviceID,
		ReceivedAt: time.Now().UTC(),
		Heartbeat:  hb,
	}); err != nil {
		m.log.Errorw("record heartbeat", "error", err)
	}
}
