package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/mapstore"
	"github.com/banshee-data/lj-costmap/internal/place"
)

// MapServiceName is the gRPC service name of the map.
const MapServiceName = "lama.map.Map"

type AddInterfaceRequest struct {
	Name        string `json:"name"`
	MessageType string `json:"message_type"`
	Getter      bool   `json:"getter"`
	Setter      bool   `json:"setter"`
}

type AddInterfaceResponse struct {
	Name string `json:"name"`
}

type SetDescriptorRequest struct {
	Interface string         `json:"interface"`
	Vertex    place.VertexID `json:"vertex"`
	Payload   []byte         `json:"payload"`
}

type SetDescriptorResponse struct {
	DescriptorID int64 `json:"descriptor_id"`
}

type GetDescriptorRequest struct {
	Interface string         `json:"interface"`
	Vertex    place.VertexID `json:"vertex"`
}

type GetDescriptorResponse struct {
	DescriptorID int64  `json:"descriptor_id"`
	Payload      []byte `json:"payload"`
}

type ListDescriptorsRequest struct {
	Interface string `json:"interface"`
}

type DescriptorEntry struct {
	Vertex       place.VertexID `json:"vertex"`
	DescriptorID int64          `json:"descriptor_id"`
	Payload      []byte         `json:"payload"`
}

type ListDescriptorsResponse struct {
	Descriptors []DescriptorEntry `json:"descriptors"`
}

// MapServer is the server side of lama.map.Map.
type MapServer interface {
	AddInterface(context.Context, *AddInterfaceRequest) (*AddInterfaceResponse, error)
	SetDescriptor(context.Context, *SetDescriptorRequest) (*SetDescriptorResponse, error)
	GetDescriptor(context.Context, *GetDescriptorRequest) (*GetDescriptorResponse, error)
	ListDescriptors(context.Context, *ListDescriptorsRequest) (*ListDescriptorsResponse, error)
}

// MapServiceDesc describes lama.map.Map.
var MapServiceDesc = grpc.ServiceDesc{
	ServiceName: MapServiceName,
	HandlerType: (*MapServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MapServiceName, "AddInterface", func(ctx context.Context, srv interface{}, req *AddInterfaceRequest) (*AddInterfaceResponse, error) {
			return srv.(MapServer).AddInterface(ctx, req)
		}),
		unary(MapServiceName, "SetDescriptor", func(ctx context.Context, srv interface{}, req *SetDescriptorRequest) (*SetDescriptorResponse, error) {
			return srv.(MapServer).SetDescriptor(ctx, req)
		}),
		unary(MapServiceName, "GetDescriptor", func(ctx context.Context, srv interface{}, req *GetDescriptorRequest) (*GetDescriptorResponse, error) {
			return srv.(MapServer).GetDescriptor(ctx, req)
		}),
		unary(MapServiceName, "ListDescriptors", func(ctx context.Context, srv interface{}, req *ListDescriptorsRequest) (*ListDescriptorsResponse, error) {
			return srv.(MapServer).ListDescriptors(ctx, req)
		}),
	},
	Metadata: "lama/map.json",
}

// StoreServer serves a mapstore.Store as lama.map.Map.
type StoreServer struct {
	store *mapstore.Store
}

// NewStoreServer wraps store.
func NewStoreServer(store *mapstore.Store) *StoreServer {
	return &StoreServer{store: store}
}

func (s *StoreServer) AddInterface(ctx context.Context, req *AddInterfaceRequest) (*AddInterfaceResponse, error) {
	iface, err := s.store.AddInterface(ctx, mapstore.Interface{
		Name:        req.Name,
		MessageType: req.MessageType,
		Getter:      req.Getter,
		Setter:      req.Setter,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &AddInterfaceResponse{Name: iface.Name}, nil
}

func (s *StoreServer) SetDescriptor(ctx context.Context, req *SetDescriptorRequest) (*SetDescriptorResponse, error) {
	id, err := s.store.SetDescriptor(ctx, req.Interface, req.Vertex, req.Payload)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SetDescriptorResponse{DescriptorID: id}, nil
}

func (s *StoreServer) GetDescriptor(ctx context.Context, req *GetDescriptorRequest) (*GetDescriptorResponse, error) {
	d, err := s.store.GetDescriptor(ctx, req.Interface, req.Vertex)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetDescriptorResponse{DescriptorID: d.ID, Payload: d.Payload}, nil
}

func (s *StoreServer) ListDescriptors(ctx context.Context, req *ListDescriptorsRequest) (*ListDescriptorsResponse, error) {
	descs, err := s.store.ListDescriptors(ctx, req.Interface)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &ListDescriptorsResponse{Descriptors: make([]DescriptorEntry, len(descs))}
	for i, d := range descs {
		resp.Descriptors[i] = DescriptorEntry{Vertex: d.Vertex, DescriptorID: d.ID, Payload: d.Payload}
	}
	return resp, nil
}

// MapClient is a lama.map.Map client. It implements jockey.MapService.
type MapClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

var _ jockey.MapService = (*MapClient)(nil)

// NewMapClient creates a client; timeout bounds each call when positive.
func NewMapClient(conn grpc.ClientConnInterface, timeout time.Duration) *MapClient {
	return &MapClient{conn: conn, timeout: timeout}
}

func (c *MapClient) AddInterface(ctx context.Context, spec jockey.InterfaceSpec) (string, error) {
	var resp AddInterfaceResponse
	err := invoke(ctx, c.conn, c.timeout, fullMethod(MapServiceName, "AddInterface"), &AddInterfaceRequest{
		Name:        spec.Name,
		MessageType: spec.MessageType,
		Getter:      spec.Getter,
		Setter:      spec.Setter,
	}, &resp)
	if status.Code(err) == codes.FailedPrecondition {
		return "", fmt.Errorf("%w: %s", jockey.ErrRegistrationRejected, status.Convert(err).Message())
	}
	if err != nil {
		return "", fromStatus(err)
	}
	return resp.Name, nil
}

func (c *MapClient) SetDescriptor(ctx context.Context, iface string, vertex place.VertexID, payload []byte) (int64, error) {
	var resp SetDescriptorResponse
	err := invoke(ctx, c.conn, c.timeout, fullMethod(MapServiceName, "SetDescriptor"),
		&SetDescriptorRequest{Interface: iface, Vertex: vertex, Payload: payload}, &resp)
	if err != nil {
		return 0, fromStatus(err)
	}
	return resp.DescriptorID, nil
}

func (c *MapClient) GetDescriptor(ctx context.Context, iface string, vertex place.VertexID) (int64, []byte, error) {
	var resp GetDescriptorResponse
	err := invoke(ctx, c.conn, c.timeout, fullMethod(MapServiceName, "GetDescriptor"),
		&GetDescriptorRequest{Interface: iface, Vertex: vertex}, &resp)
	if err != nil {
		return 0, nil, fromStatus(err)
	}
	return resp.DescriptorID, resp.Payload, nil
}

// ListDescriptors returns every descriptor under iface ordered by vertex.
func (c *MapClient) ListDescriptors(ctx context.Context, iface string) ([]DescriptorEntry, error) {
	var resp ListDescriptorsResponse
	err := invoke(ctx, c.conn, c.timeout, fullMethod(MapServiceName, "ListDescriptors"),
		&ListDescriptorsRequest{Interface: iface}, &resp)
	if err != nil {
		return nil, fromStatus(err)
	}
	return resp.Descriptors, nil
}
