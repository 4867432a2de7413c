// Package grpcapi exposes controller health over the standard gRPC health
// checking protocol.
package grpcapi

import (
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
)

// ServicePrefix names the per-subsystem health services, e.g.
// "cherrydoor.lock".
const ServicePrefix = "cherrydoor."

// HealthReporter mirrors each heartbeat into a grpc health.Server. The
// overall service "" is SERVING only when every subsystem is OK.
type HealthReporter struct {
	hs *health.Server
}

func NewHealthReporter() *HealthReporter {
	r := &HealthReporter{hs: health.NewServer()}
	r.Report(heartbeat.New())
	return r
}

// Report implements service.Reporter.
func (r *HealthReporter) Report(h heartbeat.Heartbeat) {
	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if h.AllOK() {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	r.hs.SetServingStatus("", overall)

	for _, s := range h.Status.Subsystems() {
		r.hs.SetServingStatus(ServicePrefix+s.Name, servingStatus(s.Status))
	}
}

// Server returns the health service for registration.
func (r *HealthReporter) Server() *health.Server { return r.hs }

// Shutdown marks every service NOT_SERVING.
func (r *HealthReporter) Shutdown() { r.hs.Shutdown() }

func servingStatus(s heartbeat.Status) healthpb.HealthCheckResponse_ServingStatus {
	switch s.State {
	case heartbeat.StateOK:
		return healthpb.HealthCheckResponse_SERVING
	case heartbeat.StateErr:
		return healthpb.HealthCheckResponse_NOT_SERVING
	default:
		return healthpb.HealthCheckResponse_UNKNOWN
	}
}
