package grpc

import (
	"context"
	"fmt"
	"time"

	"docqa/pkg/circuitbreaker"
	"docqa/pkg/logger"

	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RateLimitUnaryInterceptor 返回一个 gRPC 一元拦截器，用于限流。
func RateLimitUnaryInterceptor(limiter *rate.Limiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !limiter.Allow() {
			// 当请求被限流时，返回 gRPC 标准的 ResourceExhausted 错误码。
			return nil, status.Errorf(codes.ResourceExhausted, "request rejected due to rate limiting")
		}
		return handler(ctx, req)
	}
}

// CircuitBreakUnaryInterceptor 返回一个 gRPC 一元拦截器，用于熔断。
func CircuitBreakUnaryInterceptor(breaker *circuitbreaker.Breaker) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		var resp interface{}
		err := breaker.Execute(func() error {
			var herr error
			resp, herr = handler(ctx, req)
			return herr
		})
		if err == circuitbreaker.ErrCircuitOpen {
			// 熔断器已打开，返回 gRPC 标准的 Unavailable 错误码。
			return nil, status.Errorf(codes.Unavailable, "service unavailable: circuit breaker is open")
		}
		return resp, err
	}
}

// LoggingUnaryInterceptor 为每次调用记录方法名、状态码和耗时。
func LoggingUnaryInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		entry := log.WithFields(map[string]interface{}{
			"grpc_method": info.FullMethod,
			"grpc_code":   status.Code(err).String(),
			"latency_ms":  time.Since(start).Milliseconds(),
		})
		if err != nil {
			entry.WithError(err).Warn(fmt.Sprintf("gRPC %s failed", info.FullMethod))
		} else {
			entry.Debug(fmt.Sprintf("gRPC %s", info.FullMethod))
		}
		return resp, err
	}
}
