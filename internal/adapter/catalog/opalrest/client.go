// Package opalrest 实现 Opal REST 目录客户端：按 URI 发起 GET 并反序列化为 DTO
// file: internal/adapter/catalog/opalrest/client.go
package opalrest

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"OpalBridge/internal/observe"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// 编译期断言，确保 Client 实现了 port.Catalog 接口
var _ port.Catalog = (*Client)(nil)

const (
	authScheme          = "X-Opal-Auth"
	datasourcesCacheKey = "datasources"
	errorBodyLimit      = 512
)

// Options 配置客户端
type Options struct {
	BaseURL  string
	User     string
	Password string

	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int

	// CacheTTL <= 0 时禁用目录缓存
	CacheTTL        time.Duration
	MaxCacheEntries int

	HTTPClient *http.Client
}

// Client 是 port.Catalog 的 HTTP 实现
type Client struct {
	base       *url.URL
	authHeader string
	http       *http.Client
	limiter    *rate.Limiter

	variables   *lru.LRU[string, []domain.Variable]
	datasources *cache.Cache
}

// New 校验基础 URL 并创建客户端。基础 URL 后会追加 "ws/"。
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, fmt.Errorf("%w: 未提供 Opal URL", port.ErrConnection)
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: 无效的 Opal URL '%s': %v", port.ErrConnection, opts.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: 不支持的 URL 协议 '%s'", port.ErrConnection, base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: Opal URL 缺少主机名", port.ErrConnection)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	base.Path += "ws/"

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		base:       base,
		authHeader: authScheme + " " + base64.StdEncoding.EncodeToString([]byte(opts.User+":"+opts.Password)),
		http:       httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}

	if opts.CacheTTL > 0 {
		maxEntries := opts.MaxCacheEntries
		if maxEntries <= 0 {
			maxEntries = 256
		}
		c.variables = lru.NewLRU[string, []domain.Variable](maxEntries, nil, opts.CacheTTL)
		c.datasources = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return c, nil
}

// BaseURL 返回追加了 "ws/" 的基础地址
func (c *Client) BaseURL() string {
	return c.base.String()
}

// InvalidateCaches 清空目录缓存
func (c *Client) InvalidateCaches() {
	if c.variables != nil {
		c.variables.Purge()
	}
	if c.datasources != nil {
		c.datasources.Flush()
	}
	slog.Debug("Opal 目录缓存已清除")
}

func (c *Client) tableURI(ref domain.TableRef, segments ...string) *uriBuilder {
	return newURIBuilder(c.base).segment("datasource", ref.Datasource, "table", ref.Table).segment(segments...)
}

// Datasources 列出所有数据源及其表
func (c *Client) Datasources(ctx context.Context) ([]domain.Datasource, error) {
	if c.datasources != nil {
		if cached, ok := c.datasources.Get(datasourcesCacheKey); ok {
			return slices.Clone(cached.([]domain.Datasource)), nil
		}
	}
	var out []domain.Datasource
	if err := c.get(ctx, "datasources", newURIBuilder(c.base).segment("datasources").build(), &out); err != nil {
		return nil, err
	}
	if c.datasources != nil {
		c.datasources.SetDefault(datasourcesCacheKey, slices.Clone(out))
	}
	return out, nil
}

// Variables 获取表的变量定义，script 为空时返回全部变量
func (c *Client) Variables(ctx context.Context, ref domain.TableRef, script string) ([]domain.Variable, error) {
	u := c.tableURI(ref, "variables").queryNonEmpty("script", script).build()
	key := u.String()
	if c.variables != nil {
		if cached, ok := c.variables.Get(key); ok {
			slog.Debug("变量列表命中缓存", "table", ref.String())
			return slices.Clone(cached), nil
		}
	}
	var out []domain.Variable
	if err := c.get(ctx, "variables", u, &out); err != nil {
		return nil, err
	}
	if c.variables != nil {
		c.variables.Add(key, slices.Clone(out))
	}
	return out, nil
}

// Entities 获取表的实体列表，script 为实体过滤表达式
func (c *Client) Entities(ctx context.Context, ref domain.TableRef, script string) ([]domain.VariableEntity, error) {
	var out []domain.VariableEntity
	u := c.tableURI(ref, "entities").queryNonEmpty("script", script).build()
	if err := c.get(ctx, "entities", u, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValueSets 获取一页值集
func (c *Client) ValueSets(ctx context.Context, ref domain.TableRef, req domain.ValueSetsRequest) (*domain.ValueSetPage, error) {
	u := c.tableURI(ref, "valueSets").queryNonEmpty(
		"select", req.Select,
		"where", req.Where,
		"offset", strconv.Itoa(req.Offset),
		"limit", strconv.Itoa(req.Limit),
	).build()
	var out domain.ValueSetPage
	if err := c.get(ctx, "valueSets", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ValueSet 获取单个实体的值集
func (c *Client) ValueSet(ctx context.Context, ref domain.TableRef, identifier, script string) (*domain.ValueSetPage, error) {
	u := c.tableURI(ref, "valueSet", identifier).queryNonEmpty("script", script).build()
	var out domain.ValueSetPage
	if err := c.get(ctx, "valueSet", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// get 发起一次阻塞的 GET 请求并将 JSON 响应解码到 out
func (c *Client) get(ctx context.Context, resource string, u *url.URL, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("等待请求配额失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("构造请求 '%s' 失败: %w", u, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	slog.Debug("Opal 请求", "resource", resource, "uri", u.String())
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observe.ObserveCatalogRequest(resource, 0, time.Since(start))
		return fmt.Errorf("请求 '%s' 失败: %w", u, err)
	}
	defer resp.Body.Close()
	observe.ObserveCatalogRequest(resource, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: 认证失败, 状态码: %d", port.ErrConnection, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("%w: HTTP请求失败: 状态码 %d: %s", port.ErrNotFound, resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("HTTP请求失败: 状态码 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析 '%s' 响应失败: %w", resource, err)
	}
	return nil
}
