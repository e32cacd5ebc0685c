// Package grpc exposes the operational gRPC surface: the standard health
// service behind a default request deadline.
package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

func NewServer(requestTimeout time.Duration, health *HealthServer) *grpc.Server {
	s := grpc.NewServer(
		grpc.UnaryInterceptor(DefaultRequestTimeoutInterceptor(requestTimeout)),
	)
	health.Register(s)
	return s
}

// DefaultRequestTimeoutInterceptor applies timeout to calls that arrive
// without a deadline.
func DefaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

// Shutdown stops s gracefully, forcing it after timeout.
func Shutdown(s *grpc.Server, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		s.Stop()
		return false
	}
}
