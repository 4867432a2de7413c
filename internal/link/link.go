// Package link carries cherry door frames over a serial port.
package link

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/serial"
)

var (
	// ErrTimeout means no complete line arrived within the read timeout.
	ErrTimeout = errors.New("link: read timeout")

	// ErrBroken means the port failed or was closed.
	ErrBroken = errors.New("link: connection broken")
)

// DefaultTerminator ends every outbound frame unless configured otherwise.
const DefaultTerminator = "\n"

type Config struct {
	Address  string // e.g. "/dev/ttyUSB0"
	BaudRate int
	DataBits int
	StopBits int
	Parity   string // "N" | "E" | "O"
	Timeout  time.Duration

	// Terminator is appended to each frame on Send.
	Terminator string
}

// Link is a line-oriented connection to the device. Send and ReadLine may
// be called from different goroutines; concurrent Sends are serialised.
type Link struct {
	port       io.ReadWriteCloser
	reader     *bufio.Reader
	terminator string

	wmu sync.Mutex

	rmu     sync.Mutex
	pending strings.Builder

	closeOnce sync.Once
	closed    chan struct{}
}

// Open opens the serial port described by cfg.
func Open(cfg Config) (*Link, error) {
	if cfg.Address == "" {
		return nil, errors.New("link: address required")
	}
	if cfg.Parity == "" {
		cfg.Parity = "N"
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", cfg.Address, err)
	}
	return New(port, cfg.Terminator), nil
}

// New wraps an already open port. An empty terminator selects
// DefaultTerminator.
func New(port io.ReadWriteCloser, terminator string) *Link {
	if terminator == "" {
		terminator = DefaultTerminator
	}
	return &Link{
		port:       port,
		reader:     bufio.NewReader(port),
		terminator: terminator,
		closed:     make(chan struct{}),
	}
}

// Send writes one frame followed by the terminator.
func (l *Link) Send(frame string) error {
	if l.isClosed() {
		return ErrBroken
	}

	l.wmu.Lock()
	defer l.wmu.Unlock()

	if _, err := io.WriteString(l.port, frame+l.terminator); err != nil {
		return classify(err)
	}
	return nil
}

// ReadLine returns the next newline-terminated line, terminator included.
// Bytes received before a timeout are kept for the next call.
func (l *Link) ReadLine() (string, error) {
	if l.isClosed() {
		return "", ErrBroken
	}

	l.rmu.Lock()
	defer l.rmu.Unlock()

	chunk, err := l.reader.ReadString('\n')
	l.pending.WriteString(chunk)
	if err != nil {
		return "", classify(err)
	}

	line := l.pending.String()
	l.pending.Reset()
	return line, nil
}

// Close closes the port. Later calls return nil.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.port.Close()
	})
	return err
}

func (l *Link) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

type timeoutError interface {
	Timeout() bool
}

func classify(err error) error {
	if errors.Is(err, serial.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var te timeoutError
	if errors.As(err, &te) && te.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrBroken, err)
}
