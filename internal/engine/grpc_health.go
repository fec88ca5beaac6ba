package engine

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ScoringServiceName — имя сервиса в gRPC health protocol
const ScoringServiceName = "pam.Scoring"

// NewHealthServer поднимает стандартный gRPC health-сервис для оркестратора.
// Статус переключается снаружи: SERVING после старта, NOT_SERVING на остановке.
func NewHealthServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ScoringServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return srv, hs
}
