package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/cherrydoor/internal/logger"
)

type Server struct {
	addr     string
	grpc     *grpc.Server
	reporter *HealthReporter
	log      *logger.Logger

	lis net.Listener
}

func NewServer(addr string, reporter *HealthReporter, log *logger.Logger) *Server {
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, reporter.Server())

	return &Server{
		addr:     addr,
		grpc:     gs,
		reporter: reporter,
		log:      log.With("component", "grpcapi"),
	}
}

// Listen binds the configured address. Start serves on it.
func (s *Server) Listen() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.addr, err)
	}
	s.lis = lis
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Start blocks serving requests until Shutdown. It binds first if Listen
// was not called.
func (s *Server) Start() error {
	if s.lis == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.log.Infow("grpc listening", "addr", s.lis.Addr().String())
	if err := s.grpc.Serve(s.lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown marks health NOT_SERVING and stops gracefully, forcing a stop
// when ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.reporter.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		return ctx.Err()
	}
}
