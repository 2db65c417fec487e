// Package grpcserver exposes the gRPC health service and its interceptors.
package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/ditrix/ditrix-server/internal/health"
)

// Prober reports backend reachability.
type Prober interface {
	Status(ctx context.Context) health.Status
}

// HealthServer answers grpc.health.v1 from the readiness checker.
// The empty service name is the whole server; "db" and "redis" are single backends.
type HealthServer struct {
	healthpb.UnimplementedHealthServer
	checker Prober
}

// NewHealthServer constructs a health service.
func NewHealthServer(checker Prober) *HealthServer {
	return &HealthServer{checker: checker}
}

var _ healthpb.HealthServer = (*HealthServer)(nil)

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Check reports the status of the whole server or one backend.
func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	st := s.checker.Status(ctx)
	name := req.GetService()
	if name == "" {
		return &healthpb.HealthCheckResponse{Status: servingStatus(st.OK)}, nil
	}
	ok, known := st.Components[name]
	if !known {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
	}
	return &healthpb.HealthCheckResponse{Status: servingStatus(ok)}, nil
}

// List reports every backend plus the overall status under "".
func (s *HealthServer) List(ctx context.Context, _ *healthpb.HealthListRequest) (*healthpb.HealthListResponse, error) {
	st := s.checker.Status(ctx)
	out := make(map[string]*healthpb.HealthCheckResponse, len(st.Components)+1)
	out[""] = &healthpb.HealthCheckResponse{Status: servingStatus(st.OK)}
	for name, ok := range st.Components {
		out[name] = &healthpb.HealthCheckResponse{Status: servingStatus(ok)}
	}
	return &healthpb.HealthListResponse{Statuses: out}, nil
}

// Options configures New. Nil Creds serves plaintext.
type Options struct {
	Reflection bool
	Creds      credentials.TransportCredentials
}

// New builds a grpc.Server with health registered and the recover and
// logging interceptors installed. Every registered service is public.
func New(checker Prober, log *zap.Logger, opts Options) *grpc.Server {
	sopts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(
			RecoverStream(log),
		),
	}
	if opts.Creds != nil {
		sopts = append(sopts, grpc.Creds(opts.Creds))
	}
	gs := grpc.NewServer(sopts...)
	healthpb.RegisterHealthServer(gs, NewHealthServer(checker))
	if opts.Reflection {
		reflection.Register(gs)
	}
	return gs
}
