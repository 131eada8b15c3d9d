// Package cli 实现 opalquery 命令行工具：直接通过 Opal 连接查询数据源、schema 与值集
// file: internal/cli/root.go
package cli

import (
	"OpalBridge/internal/adapter/datasource/opal"
	"OpalBridge/internal/adapter/designstore/sqlite"
	"OpalBridge/internal/config"
	"OpalBridge/internal/core/port"
	"OpalBridge/internal/observe"
	"OpalBridge/internal/service"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Opener 根据配置打开查询服务，返回的 io.Closer 释放连接与存储
type Opener func(ctx context.Context, cfg *config.Config) (port.QueryService, io.Closer, error)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// OpenService 建立 Opal 连接与设计存储并组装 QueryService
func OpenService(ctx context.Context, cfg *config.Config) (port.QueryService, io.Closer, error) {
	conn, err := opal.NewDriver(cfg.Opal.PageSize, cfg.Opal.ClientOptions()).Connect(cfg.Opal.ConnectionProperties())
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	store, err := sqlite.Open(ctx, cfg.Store.Path)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	svc, err := service.NewQueryService(conn, store, cfg.Server.MaxRows)
	if err != nil {
		_ = store.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return svc, closerFunc(func() error {
		return errors.Join(store.Close(), conn.Close())
	}), nil
}

type app struct {
	out    io.Writer
	open   Opener
	cfg    *config.Config
	format string
}

// withService 打开查询服务并在 fn 返回后关闭
func (a *app) withService(ctx context.Context, fn func(svc port.QueryService) error) error {
	svc, closer, err := a.open(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	return fn(svc)
}

// NewRootCommand 构建 opalquery 根命令，open 为 nil 时使用 OpenService
func NewRootCommand(out io.Writer, open Opener) *cobra.Command {
	if open == nil {
		open = OpenService
	}
	a := &app{out: out, open: open}

	var configPath, logLevel string
	root := &cobra.Command{
		Use:   "opalquery",
		Short: "在命令行中浏览与查询 Opal 数据",
		Long: `opalquery 使用网关相同的配置直接连接 Opal 服务器。

示例:
  opalquery datasources
  opalquery schema opal-data Participants --select "name().matches(/^age/)"
  opalquery query "select * from 'opal-data.Participants' where \$('age').gt(18)" --max-rows 10
  opalquery designs run 5f1c... --format csv`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.format {
			case FormatTable, FormatJSON, FormatCSV:
			default:
				return fmt.Errorf("%w: 不支持的输出格式 '%s'", port.ErrInvalidArgument, a.format)
			}
			loader, err := config.Load(configPath)
			if err != nil {
				return err
			}
			a.cfg = loader.Config()
			level := a.cfg.Server.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			observe.InitLoggerTo(cmd.ErrOrStderr(), level)
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "configs/config.yaml", "配置文件路径，为空时仅使用环境变量")
	flags.StringVarP(&a.format, "format", "f", FormatTable, "输出格式: table, json 或 csv")
	flags.StringVar(&logLevel, "log-level", "warn", "日志级别，覆盖配置文件")

	root.AddCommand(
		newDatasourcesCommand(a),
		newSchemaCommand(a),
		newQueryCommand(a),
		newEntityCommand(a),
		newDesignsCommand(a),
		newTokenCommand(a),
	)
	return root
}
