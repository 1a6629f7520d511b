package rpc

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/banshee-data/lj-costmap/internal/monitoring"
)

// maxMsgSize bounds request and response size. Descriptor lists for a
// large map exceed the 4MB gRPC default.
const maxMsgSize = 16 * 1024 * 1024

var logf = monitoring.Tagged("gRPC")

// Server hosts services plus the standard health service.
type Server struct {
	grpc    *grpc.Server
	health  *health.Server
	lis     net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewServer creates a server; opts are appended to the defaults.
func NewServer(opts ...grpc.ServerOption) *Server {
	opts = append([]grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	}, opts...)
	s := &Server{
		grpc:   grpc.NewServer(opts...),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// RegisterService registers impl under desc and marks it serving.
func (s *Server) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.grpc.RegisterService(desc, impl)
	s.health.SetServingStatus(desc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	logf("registered %s", desc.ServiceName)
}

// Listen binds addr and serves in the background.
func (s *Server) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.Serve(lis)
	return nil
}

// Serve serves lis in the background.
func (s *Server) Serve(lis net.Listener) {
	s.lis = lis
	s.running.Store(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		logf("server listening on %s", lis.Addr())
		if err := s.grpc.Serve(lis); err != nil && s.running.Load() {
			logf("server error: %v", err)
		}
	}()
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Stop marks every service not serving and stops gracefully.
func (s *Server) Stop() {
	if !s.running.Swap(false) {
		return
	}
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.wg.Wait()
	logf("server stopped")
}

// GRPCServer exposes the underlying server.
func (s *Server) GRPCServer() *grpc.Server { return s.grpc }

// Dial opens a client connection that speaks the JSON codec by default.
func Dial(addr string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
