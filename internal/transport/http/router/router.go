// file: internal/transport/http/router/router.go
package router

import (
	"OpalBridge/internal/auth"
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"OpalBridge/internal/observe"
	"OpalBridge/internal/transport/http/middleware"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Authenticator 使用 Opal 凭据校验用户，凭据无效时返回 port.ErrConnection
type Authenticator func(ctx context.Context, user, password string) error

// Dependencies 结构体用于将所有依赖项注入到路由器中。
//
// 令牌只证明持有者拥有有效的 Opal 凭据。数据路由统一通过 Service 读取，
// Service 使用网关配置的 Opal 账号，Opal 端的按用户授权不会作用于这些请求。
// 令牌持有者的用户名随请求 context 传递 (auth.ClaimFrom)，用于审计日志。
type Dependencies struct {
	Service      port.QueryService
	Issuer       *auth.Issuer
	Authenticate Authenticator

	CORSOrigins []string
	RateLimit   float64
	RateBurst   int
}

// New 创建并配置基于 Gin 的 HTTP 路由器 (V1 版本)
func New(deps Dependencies) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), observe.PrometheusMiddleware())

	// --- 配置全局中间件 ---
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	router.Use(middleware.ErrorHandlingMiddleware())

	router.GET("/healthz", healthHandler(deps.Service))
	router.GET("/metrics", gin.WrapH(observe.Handler()))

	rateLimit, burst := deps.RateLimit, deps.RateBurst
	if rateLimit <= 0 {
		rateLimit = 20
	}
	if burst <= 0 {
		burst = 40
	}
	ipLimiter := middleware.NewIPRateLimiter(rate.Limit(rateLimit), burst)
	loginLock := middleware.NewLoginFailureLock(5, 15*time.Minute)

	v1 := router.Group("/api/v1")
	v1.Use(ipLimiter.Middleware())
	{
		// --- 认证平面 ---
		v1.POST("/token", loginLock.Middleware(), tokenHandler(deps.Issuer, deps.Authenticate))

		// --- 元数据/数据平面 ---
		data := v1.Group("")
		data.Use(middleware.RequireToken(deps.Issuer))
		{
			data.GET("/datasources", datasourcesHandler(deps.Service))
			table := data.Group("/datasources/:datasource/tables/:table")
			{
				table.GET("/schema", schemaHandler(deps.Service))
				table.GET("/rows", rowsHandler(deps.Service))
				table.GET("/entities/:id", entityHandler(deps.Service))
			}
			data.POST("/query", queryHandler(deps.Service))

			designs := data.Group("/designs")
			{
				designs.GET("", listDesignsHandler(deps.Service))
				designs.POST("", createDesignHandler(deps.Service))
				designs.GET("/:id", getDesignHandler(deps.Service))
				designs.PUT("/:id", updateDesignHandler(deps.Service))
				designs.DELETE("/:id", deleteDesignHandler(deps.Service))
				designs.POST("/:id/execute", executeDesignHandler(deps.Service))
			}
		}
	}

	return router
}

// =============================================================================
//  辅助函数
// =============================================================================

// descriptorFrom 由路径参数与 select/where 查询参数构造描述符
func descriptorFrom(c *gin.Context) domain.QueryDescriptor {
	return domain.QueryDescriptor{
		Datasource: c.Param("datasource"),
		Table:      c.Param("table"),
		Select:     c.Query("select"),
		Where:      c.Query("where"),
	}
}

// maxRowsFrom 解析 max_rows 查询参数，缺省为 0（不限制）
func maxRowsFrom(c *gin.Context) (int, error) {
	raw := c.Query("max_rows")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: max_rows '%s' 必须是非负整数", port.ErrInvalidArgument, raw)
	}
	return n, nil
}

// =============================================================================
//  处理器 (Handlers)
// =============================================================================

func healthHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !svc.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// tokenHandler 使用 Opal 凭据换取网关令牌
func tokenHandler(issuer *auth.Issuer, authenticate Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := middleware.Login(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "用户名或密码不能为空"})
			return
		}
		if err := authenticate(c.Request.Context(), req.User, req.Password); err != nil {
			if errors.Is(err, port.ErrConnection) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码无效"})
				return
			}
			_ = c.Error(err)
			return
		}
		token, expires, err := issuer.GenToken(req.User)
		if err != nil {
			slog.Error("生成令牌失败", "user", req.User, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "生成令牌失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires, "user": req.User})
	}
}

func datasourcesHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Datasources(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func schemaHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		schema, err := svc.Schema(c.Request.Context(), descriptorFrom(c))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": schema})
	}
}

func rowsHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		maxRows, err := maxRowsFrom(c)
		if err != nil {
			_ = c.Error(err)
			return
		}
		res, err := svc.Query(c.Request.Context(), descriptorFrom(c), maxRows)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": res})
	}
}

func entityHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ev, err := svc.EntityValues(c.Request.Context(), descriptorFrom(c), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": ev})
	}
}

// queryHandler 接受查询文本或显式的描述符
func queryHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			QueryText  string                  `json:"query_text"`
			Descriptor *domain.QueryDescriptor `json:"descriptor"`
			MaxRows    int                     `json:"max_rows" binding:"gte=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(fmt.Errorf("%w: 无效的请求体: %v", port.ErrInvalidArgument, err))
			return
		}

		var (
			res *domain.QueryResult
			err error
		)
		switch {
		case req.Descriptor != nil:
			res, err = svc.Query(c.Request.Context(), *req.Descriptor, req.MaxRows)
		case req.QueryText != "":
			res, err = svc.QueryByText(c.Request.Context(), req.QueryText, req.MaxRows)
		default:
			err = fmt.Errorf("%w: 需要 query_text 或 descriptor", port.ErrInvalidArgument)
		}
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": res})
	}
}

// --- 数据集设计 ---

type designPayload struct {
	Name       string                 `json:"name" binding:"required"`
	QueryText  string                 `json:"query_text"`
	Descriptor domain.QueryDescriptor `json:"descriptor"`
}

func (p designPayload) toDesign(id string) *domain.DataSetDesign {
	return &domain.DataSetDesign{ID: id, Name: p.Name, QueryText: p.QueryText, Descriptor: p.Descriptor}
}

func bindDesign(c *gin.Context) (designPayload, bool) {
	var p designPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		_ = c.Error(fmt.Errorf("%w: 无效的JSON请求体: %v", port.ErrInvalidArgument, err))
		return p, false
	}
	return p, true
}

func listDesignsHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Designs(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func createDesignHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := bindDesign(c)
		if !ok {
			return
		}
		design := p.toDesign("")
		if err := svc.SaveDesign(c.Request.Context(), design); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": design})
	}
}

func getDesignHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		design, err := svc.Design(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": design})
	}
}

func updateDesignHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := bindDesign(c)
		if !ok {
			return
		}
		if err := svc.SaveDesign(c.Request.Context(), p.toDesign(c.Param("id"))); err != nil {
			_ = c.Error(err)
			return
		}
		design, err := svc.Design(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": design})
	}
}

func deleteDesignHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteDesign(c.Request.Context(), c.Param("id")); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func executeDesignHandler(svc port.QueryService) gin.HandlerFunc {
	return func(c *gin.Context) {
		maxRows, err := maxRowsFrom(c)
		if err != nil {
			_ = c.Error(err)
			return
		}
		res, err := svc.ExecuteDesign(c.Request.Context(), c.Param("id"), maxRows)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": res})
	}
}
