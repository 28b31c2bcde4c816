// Package healthsrv exposes the standard gRPC health service so that
// orchestrators can check the API without speaking HTTP.
package healthsrv

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "mia.shop.v1.API"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	deps   []Pinger
	log    *zap.Logger
}

func New(log *zap.Logger, deps ...Pinger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		deps:   deps,
		log:    log,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)
	s.set(healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Check pings every dependency and updates the published status.
func (s *Server) Check(ctx context.Context) error {
	for _, d := range s.deps {
		if err := d.Ping(ctx); err != nil {
			s.set(healthpb.HealthCheckResponse_NOT_SERVING)
			return err
		}
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return nil
}

// Watch re-runs Check every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := s.Check(pctx); err != nil {
				s.log.Warn("health check failed", zap.Error(err))
			}
			cancel()
		}
	}
}

func (s *Server) Serve(lis net.Listener) error { return s.grpc.Serve(lis) }

// Stop marks the service as not serving and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
