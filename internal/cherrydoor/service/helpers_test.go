package service_test

import (
	"errors"
	"sync"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
)

type readResult struct {
	line string
	err  error
}

// scriptedLink replays reads in order, then reports broken forever.
type scriptedLink struct {
	mu    sync.Mutex
	reads []readResult
	sent  []string
	fail  error
}

var errExhausted = errors.New("script exhausted")

func (l *scriptedLink) ReadLine() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.reads) == 0 {
		return "", errExhausted
	}
	r := l.reads[0]
	l.reads = l.reads[1:]
	return r.line, r.err
}

func (l *scriptedLink) Send(frame string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.sent = append(l.sent, frame)
	return nil
}

func (l *scriptedLink) Sent() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sent...)
}

type recordingReporter struct {
	mu  sync.Mutex
	got []heartbeat.Heartbeat
}

func (r *recordingReporter) Report(h heartbeat.Heartbeat) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, h)
}

func (r *recordingReporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}
