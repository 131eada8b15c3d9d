// file: cmd/gateway/main.go

package main

import (
	"OpalBridge/internal/adapter/datasource/opal"
	"OpalBridge/internal/adapter/designstore/sqlite"
	"OpalBridge/internal/auth"
	"OpalBridge/internal/config"
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/observe"
	"OpalBridge/internal/service"
	grpctransport "OpalBridge/internal/transport/grpc"
	"OpalBridge/internal/transport/http/router"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "v0.3.0"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径，为空时仅使用环境变量")
	flag.Parse()

	// 在日志系统完全初始化前，使用标准 log
	log.Printf("OpalBridge gateway %s 正在启动...", version)

	loader, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("CRITICAL: 加载配置失败: %v", err)
	}
	cfg := loader.Config()

	observe.InitLogger(cfg.Server.LogLevel)
	slog.Info("OpalBridge gateway starting up", "version", version, "config", loader.ConfigFile())

	loader.Watch(func(old, updated *config.Config) {
		observe.SetLevel(updated.Server.LogLevel)
		if old.Opal != updated.Opal || old.Server.Port != updated.Server.Port {
			slog.Warn("Opal 连接或监听端口的变更需要重启后生效")
		}
	})

	if err := run(cfg); err != nil {
		slog.Error("网关异常退出", "error", err)
		os.Exit(1)
	}
	slog.Info("程序即将退出。")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver := opal.NewDriver(cfg.Opal.PageSize, cfg.Opal.ClientOptions())
	conn, err := driver.Connect(cfg.Opal.ConnectionProperties())
	if err != nil {
		return fmt.Errorf("连接 Opal 失败: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("关闭 Opal 连接时发生错误", "error", err)
		}
	}()
	slog.Info("适配层: Opal 连接已建立", "url", cfg.Opal.URL, "page_size", cfg.Opal.PageSize)

	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建存储目录 '%s' 失败: %w", dir, err)
		}
	}
	store, err := sqlite.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() {
		slog.Info("正在关闭设计存储...")
		if err := store.Close(); err != nil {
			slog.Error("关闭设计存储时发生错误", "error", err)
		}
	}()

	svc, err := service.NewQueryService(conn, store, cfg.Server.MaxRows)
	if err != nil {
		return err
	}
	slog.Info("服务层: QueryService 初始化完成")

	issuer, err := auth.NewIssuer(cfg.Server.JWTSecret, cfg.Server.TokenTTL)
	if err != nil {
		return err
	}

	observe.Register()
	observe.EnablePprof(ctx, cfg.Server.PprofAddr)

	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(router.Dependencies{
			Service:      svc,
			Issuer:       issuer,
			Authenticate: opalAuthenticator(driver, cfg.Opal.URL),
			CORSOrigins:  cfg.Server.CORSOrigins,
			RateLimit:    cfg.Server.RateLimit,
			RateBurst:    cfg.Server.RateBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("网关启动成功，开始监听HTTP请求...", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP服务启动失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("收到停机信号，准备优雅关闭...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP服务优雅关闭失败: %w", err)
		}
		slog.Info("HTTP服务已成功关闭。")
		return nil
	})

	if cfg.Server.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("gRPC 服务监听端口 %d 失败: %w", cfg.Server.GRPCPort, err)
		}
		health := grpctransport.NewHealthServer(func(ctx context.Context) error {
			_, err := svc.Datasources(ctx)
			return err
		}, 30*time.Second)
		g.Go(func() error { return health.Serve(gctx, lis) })
	}

	return g.Wait()
}

// opalAuthenticator 用用户提供的凭据打开一个临时连接并列出数据源。
// 它只负责签发令牌前的身份校验，数据查询仍走网关配置的账号。
func opalAuthenticator(driver *opal.Driver, url string) router.Authenticator {
	return func(ctx context.Context, user, password string) error {
		conn, err := driver.Connect(map[string]string{
			domain.ConnURL:      url,
			domain.ConnUser:     user,
			domain.ConnPassword: password,
		})
		if err != nil {
			return err
		}
		defer conn.Close()
		_, err = conn.Datasources(ctx)
		return err
	}
}
