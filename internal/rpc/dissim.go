package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/lj-costmap/internal/dissim"
	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/place"
)

// DissimilarityServiceName is the gRPC service name of the dissimilarity
// service. Its method names come from configuration.
const DissimilarityServiceName = "lama.place.Dissimilarity"

// DissimilarityServer is the server side of lama.place.Dissimilarity.
type DissimilarityServer interface {
	Localize(context.Context, *place.CompareRequest) (*place.CompareResponse, error)
	CompareAll(context.Context, *place.CompareRequest) (*place.CompareResponse, error)
}

// NewDissimilarityServiceDesc describes lama.place.Dissimilarity with the
// two methods named localizeMethod and compareMethod.
func NewDissimilarityServiceDesc(localizeMethod, compareMethod string) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: DissimilarityServiceName,
		HandlerType: (*DissimilarityServer)(nil),
		Methods: []grpc.MethodDesc{
			unary(DissimilarityServiceName, localizeMethod, func(ctx context.Context, srv interface{}, req *place.CompareRequest) (*place.CompareResponse, error) {
				return srv.(DissimilarityServer).Localize(ctx, req)
			}),
			unary(DissimilarityServiceName, compareMethod, func(ctx context.Context, srv interface{}, req *place.CompareRequest) (*place.CompareResponse, error) {
				return srv.(DissimilarityServer).CompareAll(ctx, req)
			}),
		},
		Metadata: "lama/dissimilarity.json",
	}
}

// ScoringServer serves a dissim.Service.
type ScoringServer struct {
	svc *dissim.Service
}

// NewScoringServer wraps svc.
func NewScoringServer(svc *dissim.Service) *ScoringServer {
	return &ScoringServer{svc: svc}
}

func (s *ScoringServer) Localize(ctx context.Context, req *place.CompareRequest) (*place.CompareResponse, error) {
	resp, err := s.svc.Localize(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

func (s *ScoringServer) CompareAll(ctx context.Context, req *place.CompareRequest) (*place.CompareResponse, error) {
	resp, err := s.svc.CompareAll(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

// DissimilarityClient calls lama.place.Dissimilarity. It implements
// jockey.DissimilarityService; the endpoint is the method name.
type DissimilarityClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

var _ jockey.DissimilarityService = (*DissimilarityClient)(nil)

// NewDissimilarityClient creates a client; timeout bounds each call when
// positive.
func NewDissimilarityClient(conn grpc.ClientConnInterface, timeout time.Duration) *DissimilarityClient {
	return &DissimilarityClient{conn: conn, timeout: timeout}
}

func (c *DissimilarityClient) Compare(ctx context.Context, endpoint string, req place.CompareRequest) (place.CompareResponse, error) {
	var resp place.CompareResponse
	if err := invoke(ctx, c.conn, c.timeout, fullMethod(DissimilarityServiceName, endpoint), &req, &resp); err != nil {
		return place.CompareResponse{}, fromStatus(err)
	}
	return resp, nil
}
