package rpc

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/lj-costmap/internal/dissim"
	"github.com/banshee-data/lj-costmap/internal/jockey"
	"github.com/banshee-data/lj-costmap/internal/mapstore"
)

// toStatus maps a server-side error to a gRPC status.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, mapstore.ErrNotFound), errors.Is(err, jockey.ErrUnknownVertex):
		code = codes.NotFound
	case errors.Is(err, mapstore.ErrTypeConflict), errors.Is(err, mapstore.ErrUnknownInterface):
		code = codes.FailedPrecondition
	case errors.Is(err, mapstore.ErrInvalidInterface), errors.Is(err, dissim.ErrNoTarget),
		errors.Is(err, dissim.ErrNoInterface), errors.Is(err, jockey.ErrUnknownAction):
		code = codes.InvalidArgument
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// fromStatus maps a client-side gRPC error onto the jockey sentinels.
// FailedPrecondition only means a rejected registration on AddInterface,
// which maps it itself.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%w: %v", jockey.ErrServiceUnavailable, err)
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", jockey.ErrUnknownVertex, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", jockey.ErrInterrupted, st.Message())
	}
	return fmt.Errorf("%w: %s: %s", jockey.ErrServiceUnavailable, st.Code(), st.Message())
}
