// Package rpc carries the map, dissimilarity and jockey services over gRPC.
//
// Messages are plain Go structs encoded with a JSON codec registered under
// the "json" content subtype; there are no generated stubs. Each service is
// described by a hand-written grpc.ServiceDesc.
package rpc

import (
	"context"
	"encoding/json"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype used by every service here.
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// unary builds a MethodDesc that decodes a *Req, runs call and returns its
// *Resp, honouring any server interceptor.
func unary[Req, Resp any](service, method string, call func(ctx context.Context, srv interface{}, req *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(ctx, srv, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(service, method)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(ctx, srv, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func fullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// invoke performs a unary call with the JSON codec, bounded by timeout when
// it is positive.
func invoke(ctx context.Context, conn grpc.ClientConnInterface, timeout time.Duration, method string, req, resp interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return conn.Invoke(ctx, method, req, resp, grpc.CallContentSubtype(CodecName))
}
