// Package health exposes the consumer's lifecycle over the standard gRPC
// health protocol.
package health

import (
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service reported for the order consumer.
const ServiceName = "orders.consumer"

type Server struct {
	grpc   *grpc.Server
	health *grpchealth.Server
}

// NewServer starts in NOT_SERVING until the consumer reports otherwise.
func NewServer() *Server {
	gs := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	s := &Server{grpc: gs, health: hs}
	s.SetServing(false)
	return s
}

// SetServing implements consumer.StatusReporter. The overall ("") status
// follows the consumer's.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}

func (s *Server) Serve(lis net.Listener) error { return s.grpc.Serve(lis) }

// Stop marks every service NOT_SERVING and drains open streams.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
