// Package grpc serves the administrative API: version pruning, forced unlock,
// lock inspection and file import, next to the standard gRPC health service.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
	"github.com/dmitrijs2005/wopihost/internal/server/retention"
	"github.com/dmitrijs2005/wopihost/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// AdminService is the part of services.WopiService used by the admin API.
type AdminService interface {
	CleanVersions(ctx context.Context, req services.CleanRequest) (*retention.Result, error)
	ForceUnlock(ctx context.Context, fileID, by string) error
	RevokeToken(ctx context.Context, fileID, identity, by string) error
	CurrentLock(ctx context.Context, fileID string) (*models.LockRecord, error)
	ImportFile(ctx context.Context, req services.ImportRequest) (*models.FileMetadata, error)
}

type GRPCServer struct {
	address   string
	admin     AdminService
	admins    []string
	logger    logging.Logger
	jwtSecret []byte
	health    *health.Server
}

// NewGRPCServer builds the admin server. adminKey verifies admin tokens and
// admins, when not empty, restricts which UserIDs may call.
func NewGRPCServer(a string, l logging.Logger, svc AdminService, adminKey []byte, admins []string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		admin:     svc,
		admins:    admins,
		jwtSecret: adminKey,
		health:    health.NewServer(),
	}
}

// newServer assembles the grpc.Server with interceptors and services.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	RegisterAdminServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(AdminServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections; a stop that races ahead of
	// Serve is a clean shutdown too
	if err := srv.Serve(listen); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}
