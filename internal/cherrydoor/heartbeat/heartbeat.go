// Package heartbeat decodes the periodic status line emitted by the cherry
// door controller.
//
// The line is semicolon separated:
//
//	<card code | "0">;<health>;...
//
// A card code is exactly eight characters; "0" means no card was presented.
// The health field is reserved by the firmware and kept verbatim.
package heartbeat

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CodeLength is the length of an RFID card code on the wire.
const CodeLength = 8

const noCard = "0"

// Diagnostic reasons set on the controller by the failure annotations.
const (
	ReasonConnectionBroken  = "Serial connection broken"
	ReasonConnectionTimeout = "Serial connection timeout"
	ReasonInvalidHeartbeat  = "Invalid heartbeat received"
)

// ErrInvalidHeartbeat is matched (via errors.Is) by every ParseError.
var ErrInvalidHeartbeat = errors.New("invalid heartbeat string format")

// ParseError describes a heartbeat line that could not be decoded.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid heartbeat string format: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrInvalidHeartbeat }

// now is swapped in tests.
var now = time.Now

// Heartbeat is an immutable snapshot of one device status report.
type Heartbeat struct {
	Status StatusMap

	// Code is the card read by the RFID reader, empty when none.
	Code string

	// Health is the reserved second field, not decoded.
	Health string

	// Timestamp is the capture time in unix seconds. It is assigned locally,
	// the device does not send one.
	Timestamp int64
}

// New returns a heartbeat with every subsystem OK, no card and the current
// time.
func New() Heartbeat {
	return Heartbeat{
		Status:    allOK(),
		Timestamp: now().Unix(),
	}
}

// Parse decodes one raw heartbeat line.
func Parse(line string) (Heartbeat, error) {
	frags := strings.Split(line, ";")
	if len(frags) < 2 {
		return Heartbeat{}, &ParseError{Line: line, Reason: "expected at least two fields"}
	}

	cardID, health := frags[0], frags[1]

	var code string
	if cardID != noCard {
		if len(cardID) != CodeLength {
			return Heartbeat{}, &ParseError{
				Line:   line,
				Reason: fmt.Sprintf("card code must be %q or %d characters, got %d", noCard, CodeLength, len(cardID)),
			}
		}
		code = cardID
	}

	return Heartbeat{
		Status:    allOK(),
		Code:      code,
		Health:    health,
		Timestamp: now().Unix(),
	}, nil
}

// WithConnectionBroken reports that the serial link failed.
func (h Heartbeat) WithConnectionBroken() Heartbeat {
	h.Status = controllerFailure(ReasonConnectionBroken)
	return h
}

// WithConnectionTimeout reports that no heartbeat arrived in time.
func (h Heartbeat) WithConnectionTimeout() Heartbeat {
	h.Status = controllerFailure(ReasonConnectionTimeout)
	return h
}

// WithInvalidHeartbeat reports that the received line failed to parse.
func (h Heartbeat) WithInvalidHeartbeat() Heartbeat {
	h.Status = controllerFailure(ReasonInvalidHeartbeat)
	return h
}

// AllOK reports whether every subsystem is exactly OK.
func (h Heartbeat) AllOK() bool {
	for _, s := range h.Status.Subsystems() {
		if !s.Status.IsOK() {
			return false
		}
	}
	return true
}

func (h Heartbeat) HasCode() bool { return h.Code != "" }

// Time returns Timestamp as a UTC time.
func (h Heartbeat) Time() time.Time { return time.Unix(h.Timestamp, 0).UTC() }
