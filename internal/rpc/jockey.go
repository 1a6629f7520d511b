package rpc

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/place"
)

// JockeyServiceName is the gRPC service name of the action surface.
const JockeyServiceName = "lama.jockey.LocalizingJockey"

// PersistRequest asks the jockey to store a descriptor pair on a vertex.
type PersistRequest struct {
	Vertex   place.VertexID `json:"vertex"`
	Profile  place.Profile  `json:"profile"`
	Crossing place.Crossing `json:"crossing"`
}

type StatusRequest struct{}

// StatusResponse reports the jockey's state and its most recent result.
type StatusResponse struct {
	Name       string         `json:"name"`
	State      jockey.State   `json:"state"`
	LastResult *jockey.Result `json:"last_result,omitempty"`
}

// JockeyServer is the server side of lama.jockey.LocalizingJockey.
type JockeyServer interface {
	Execute(context.Context, *jockey.Request) (*jockey.Result, error)
	Persist(context.Context, *PersistRequest) (*jockey.Result, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
}

// JockeyServiceDesc describes lama.jockey.LocalizingJockey.
var JockeyServiceDesc = grpc.ServiceDesc{
	ServiceName: JockeyServiceName,
	HandlerType: (*JockeyServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(JockeyServiceName, "Execute", func(ctx context.Context, srv interface{}, req *jockey.Request) (*jockey.Result, error) {
			return srv.(JockeyServer).Execute(ctx, req)
		}),
		unary(JockeyServiceName, "Persist", func(ctx context.Context, srv interface{}, req *PersistRequest) (*jockey.Result, error) {
			return srv.(JockeyServer).Persist(ctx, req)
		}),
		unary(JockeyServiceName, "Status", func(ctx context.Context, srv interface{}, req *StatusRequest) (*StatusResponse, error) {
			return srv.(JockeyServer).Status(ctx, req)
		}),
	},
	Metadata: "lama/jockey.json",
}

// FrameServer serves a jockey.Frame. Action failures travel inside the
// Result; only malformed requests fail at the gRPC level. A client that
// cancels its call interrupts the running goal.
type FrameServer struct {
	frame *jockey.Frame

	mu   sync.Mutex
	last *jockey.Result
}

// NewFrameServer wraps frame and records every result it produces.
func NewFrameServer(frame *jockey.Frame) *FrameServer {
	s := &FrameServer{frame: frame}
	frame.Controller().Observe(func(res jockey.Result) {
		s.mu.Lock()
		s.last = &res
		s.mu.Unlock()
	})
	return s
}

func (s *FrameServer) Execute(ctx context.Context, req *jockey.Request) (*jockey.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res := s.frame.Execute(ctx, *req)
	return &res, nil
}

func (s *FrameServer) Persist(ctx context.Context, req *PersistRequest) (*jockey.Result, error) {
	if req.Profile.Empty() {
		return nil, status.Error(codes.InvalidArgument, "persist needs a non-empty place profile")
	}
	res := s.frame.Persist(ctx, req.Vertex, req.Profile, req.Crossing)
	return &res, nil
}

func (s *FrameServer) Status(context.Context, *StatusRequest) (*StatusResponse, error) {
	ctrl := s.frame.Controller()
	s.mu.Lock()
	defer s.mu.Unlock()
	return &StatusResponse{Name: ctrl.Name(), State: ctrl.State(), LastResult: s.last}, nil
}

// JockeyClient calls lama.jockey.LocalizingJockey.
type JockeyClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewJockeyClient creates a client; timeout bounds each call when positive.
func NewJockeyClient(conn grpc.ClientConnInterface, timeout time.Duration) *JockeyClient {
	return &JockeyClient{conn: conn, timeout: timeout}
}

// Execute runs req and waits for its result.
func (c *JockeyClient) Execute(ctx context.Context, req jockey.Request) (jockey.Result, error) {
	var res jockey.Result
	if err := invoke(ctx, c.conn, c.timeout, fullMethod(JockeyServiceName, "Execute"), &req, &res); err != nil {
		return jockey.Result{}, err
	}
	return res, nil
}

// Persist stores profile and crossing on vertex.
func (c *JockeyClient) Persist(ctx context.Context, vertex place.VertexID, profile place.Profile, cr place.Crossing) (jockey.Result, error) {
	var res jockey.Result
	req := &PersistRequest{Vertex: vertex, Profile: profile, Crossing: cr}
	if err := invoke(ctx, c.conn, c.timeout, fullMethod(JockeyServiceName, "Persist"), req, &res); err != nil {
		return jockey.Result{}, err
	}
	return res, nil
}

// Status fetches the jockey state.
func (c *JockeyClient) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	if err := invoke(ctx, c.conn, c.timeout, fullMethod(JockeyServiceName, "Status"), &StatusRequest{}, &resp); err != nil {
		return StatusResponse{}, err
	}
	return resp, nil
}
