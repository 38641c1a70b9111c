package grpc

import (
	"fmt"
	"net"

	"docqa/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server 封装了标准的 grpc.Server，并内置标准健康检查服务。
type Server struct {
	grpcServer   *grpc.Server
	health       *health.Server
	address      string
	interceptors []grpc.UnaryServerInterceptor
	log          *logger.Logger
}

// ServerOption 定义了用于配置 Server 的函数。
type ServerOption func(*Server)

// WithAddress 设置服务器监听的地址。
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.address = addr
	}
}

// WithLogger 设置日志记录器。
func WithLogger(log *logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = log
	}
}

// WithUnaryInterceptors 按顺序串联一元拦截器。
func WithUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) ServerOption {
	return func(s *Server) {
		s.interceptors = append(s.interceptors, interceptors...)
	}
}

// NewServer 创建 gRPC 服务器并注册健康检查与反射服务。
// 所有服务初始状态为 NOT_SERVING，由调用方在依赖就绪后切换。
func NewServer(opts ...ServerOption) *Server {
	srv := &Server{health: health.NewServer()}
	for _, opt := range opts {
		opt(srv)
	}
	srv.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(srv.interceptors...))
	if srv.address == "" {
		srv.address = ":50051"
	}
	if srv.log == nil {
		srv.log = logger.Nop()
	}

	healthpb.RegisterHealthServer(srv.grpcServer, srv.health)
	reflection.Register(srv.grpcServer)
	srv.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return srv
}

// SetServing 设置指定服务（空字符串表示整体）的健康状态。
func (s *Server) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// ListenAndServe 开始监听并提供 gRPC 服务。
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.log.Info(fmt.Sprintf("gRPC 健康检查服务启动于 %s", s.address))
	return s.grpcServer.Serve(lis)
}

// Serve 在已有的 listener 上提供服务，测试中使用。
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// GracefulStop 先将所有服务标记为 NOT_SERVING，再优雅地停止 gRPC 服务器。
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
