// Package grpctransport 以标准 gRPC 健康检查协议对外报告网关状态
// file: internal/transport/grpc/health.go
package grpctransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName 是健康检查中网关服务的名称；空名称表示整个服务器
const ServiceName = "opalbridge.v1.Gateway"

const stopTimeout = 5 * time.Second

// Probe 检查上游是否可用，返回 nil 表示可以提供服务
type Probe func(ctx context.Context) error

// HealthServer 周期性探测上游并更新健康状态
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	probe    Probe
	interval time.Duration
}

// NewHealthServer 创建健康检查服务器，interval <= 0 时每 30 秒探测一次
func NewHealthServer(probe Probe, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor))
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{server: srv, health: hs, probe: probe, interval: interval}
}

// Serve 在 lis 上提供服务，直到 ctx 结束后优雅关闭
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	s.refresh(ctx)
	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		done := make(chan struct{})
		go func() {
			s.server.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(stopTimeout):
			slog.Warn("gRPC 服务优雅关闭超时，强制停止")
			s.server.Stop()
		}
	}()

	slog.Info("gRPC 健康检查服务开始监听", "address", lis.Addr().String())
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("gRPC 服务运行失败: %w", err)
	}
	return nil
}

func (s *HealthServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

// refresh 执行一次探测并同步两个服务名的状态
func (s *HealthServer) refresh(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.probe(probeCtx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		slog.Warn("上游健康探测失败", "error", err)
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("gRPC 请求", "method", info.FullMethod, "elapsed", time.Since(start), "error", err)
	return resp, err
}
