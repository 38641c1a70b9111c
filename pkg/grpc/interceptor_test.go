package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"docqa/pkg/circuitbreaker"
	"docqa/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func okHandler(context.Context, interface{}) (interface{}, error) { return "ok", nil }

func TestRateLimitUnaryInterceptor(t *testing.T) {
	interceptor := RateLimitUnaryInterceptor(rate.NewLimiter(rate.Limit(0.001), 1))

	resp, err := interceptor(context.Background(), nil, testInfo, okHandler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = interceptor(context.Background(), nil, testInfo, okHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestCircuitBreakUnaryInterceptor(t *testing.T) {
	breaker := circuitbreaker.New(circuitbreaker.Settings{FailureThreshold: 1, Timeout: time.Hour})
	interceptor := CircuitBreakUnaryInterceptor(breaker)
	boom := errors.New("boom")

	_, err := interceptor(context.Background(), nil, testInfo, func(context.Context, interface{}) (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = interceptor(context.Background(), nil, testInfo, okHandler)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestLoggingUnaryInterceptorPassesThrough(t *testing.T) {
	interceptor := LoggingUnaryInterceptor(logger.Nop())

	resp, err := interceptor(context.Background(), nil, testInfo, okHandler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
