package grpctransport

import (
	"context"
	"errors"
	"io"

	connbinding "github.com/joeycumines/go-connbinding"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// statusFromError maps a terminal stream error onto a status code. Codes in
// the gRPC range pass through; everything else degrades to Unknown.
func statusFromError(err error) connbinding.StatusCode {
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return connbinding.StatusSuccess
	case errors.Is(err, context.Canceled):
		return connbinding.StatusCode(codes.Canceled)
	case errors.Is(err, context.DeadlineExceeded):
		return connbinding.StatusCode(codes.DeadlineExceeded)
	}
	if s, ok := status.FromError(err); ok {
		return connbinding.StatusCode(s.Code())
	}
	return connbinding.StatusCode(codes.Unknown)
}
