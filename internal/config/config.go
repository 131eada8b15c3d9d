// Package config 加载网关与命令行工具共用的配置：YAML 文件、OPALBRIDGE_* 环境变量与默认值
// file: internal/config/config.go
package config

import (
	"OpalBridge/internal/adapter/catalog/opalrest"
	"OpalBridge/internal/core/domain"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "OPALBRIDGE"

// OpalConfig 描述上游 Opal 服务器与目录客户端的行为
type OpalConfig struct {
	URL               string        `mapstructure:"url" validate:"required,url"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	PageSize          int           `mapstructure:"page_size" validate:"gte=1,lte=10000"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
	MaxCacheEntries   int           `mapstructure:"max_cache_entries" validate:"gte=0"`
}

// ConnectionProperties 返回驱动 Connect 所需的连接属性
func (o OpalConfig) ConnectionProperties() map[string]string {
	return map[string]string{
		domain.ConnURL:      o.URL,
		domain.ConnUser:     o.User,
		domain.ConnPassword: o.Password,
	}
}

// ClientOptions 返回目录客户端模板，URL 与凭据由 Connect 填入
func (o OpalConfig) ClientOptions() opalrest.Options {
	return opalrest.Options{
		Timeout:           o.Timeout,
		RequestsPerSecond: o.RequestsPerSecond,
		Burst:             o.Burst,
		CacheTTL:          o.CacheTTL,
		MaxCacheEntries:   o.MaxCacheEntries,
	}
}

type ServerConfig struct {
	Port        int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	GRPCPort    int           `mapstructure:"grpc_port" validate:"gte=0,lte=65535"` // 0 表示不启动 gRPC 健康检查
	LogLevel    string        `mapstructure:"log_level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	PprofAddr   string        `mapstructure:"pprof_addr"`
	JWTSecret   string        `mapstructure:"jwt_secret" validate:"required,min=16"`
	TokenTTL    time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
	CORSOrigins []string      `mapstructure:"cors_origins"`
	// 每个客户端 IP 的请求速率与突发量
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"gt=0"`
	// 单次查询的行数上限，0 表示不限制
	MaxRows int `mapstructure:"max_rows" validate:"gte=0"`
}

type StoreConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type Config struct {
	Opal   OpalConfig   `mapstructure:"opal"`
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("opal.url", "")
	v.SetDefault("opal.user", "")
	v.SetDefault("opal.password", "")
	v.SetDefault("opal.page_size", 100)
	v.SetDefault("opal.timeout", "30s")
	v.SetDefault("opal.requests_per_second", 0)
	v.SetDefault("opal.burst", 10)
	v.SetDefault("opal.cache_ttl", "5m")
	v.SetDefault("opal.max_cache_entries", 256)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.pprof_addr", "")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", "12h")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.max_rows", 10000)

	v.SetDefault("store.path", "instance/designs.db")
}

// Loader 持有 viper 实例与最近一次成功加载的配置
type Loader struct {
	v       *viper.Viper
	mu      sync.RWMutex
	current *Config
}

// Load 读取配置文件（path 为空时仅使用默认值与环境变量）并校验
func Load(path string) (*Loader, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件 '%s' 失败: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Loader{v: v, current: cfg}, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置到结构体失败: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return &cfg, nil
}

// Config 返回当前配置
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// ConfigFile 返回正在使用的配置文件路径
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Watch 监听配置文件变化，重新加载成功后以新旧配置调用 onChange
func (l *Loader) Watch(onChange func(old, updated *Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		l.reload(e, onChange)
	})
	l.v.WatchConfig()
	slog.Info("配置热加载已启用", "path", l.v.ConfigFileUsed())
}

// reload 在 viper 重新读取文件后解码并替换当前配置；无效的新配置被丢弃
func (l *Loader) reload(e fsnotify.Event, onChange func(old, updated *Config)) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	updated, err := decode(l.v)
	if err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			slog.Warn("配置文件变更未通过校验，保留原配置", "path", e.Name, "error", ve.Error())
		} else {
			slog.Warn("配置文件变更解析失败，保留原配置", "path", e.Name, "error", err)
		}
		return
	}

	l.mu.Lock()
	old := l.current
	l.current = updated
	l.mu.Unlock()

	slog.Info("配置已重新加载", "path", e.Name)
	if onChange != nil {
		onChange(old, updated)
	}
}
