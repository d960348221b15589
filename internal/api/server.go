package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/trendpulse/trendpulse/internal/config"
)

// Server wraps the gRPC server implementation and lifecycle helpers.
type Server struct {
	cfg        config.ServerConfig
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
}

// NewServer constructs a gRPC server bound to the configured address.
func NewServer(cfg config.ServerConfig, service TrendAnalyzerServer, opts ...grpc.ServerOption) (*Server, error) {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.GRPCAddress, err)
	}

	grpcServer, healthSrv := newGRPCServer(service, opts...)
	return &Server{
		cfg:        cfg,
		grpcServer: grpcServer,
		health:     healthSrv,
		listener:   lis,
	}, nil
}

func newGRPCServer(service TrendAnalyzerServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
	serverOpts = append(serverOpts, opts...)
	grpcServer := grpc.NewServer(serverOpts...)

	RegisterTrendAnalyzerServer(grpcServer, service)
	grpc_prometheus.Register(grpcServer)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(TrendAnalyzerServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthSrv)

	reflection.Register(grpcServer)
	return grpcServer, healthSrv
}

// Run serves until ctx is cancelled, then drains in-flight RPCs for up to the
// graceful timeout before forcing the remaining connections closed. Health
// checks report NOT_SERVING while draining.
func (s *Server) Run(ctx context.Context) error {
	if s.grpcServer == nil || s.listener == nil {
		return errors.New("server not initialised")
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.grpcServer.Serve(s.listener) }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	s.health.Shutdown()
	drained := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(drained)
	}()

	timeout := s.cfg.GracefulTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-drained:
	case <-timer.C:
		s.grpcServer.Stop()
	}
	return nil
}

// Address reports the bound listener address.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
