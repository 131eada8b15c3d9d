// file: internal/transport/http/middleware/auth.go
package middleware

import (
	"OpalBridge/internal/auth"
	"OpalBridge/internal/core/port"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// RequireToken 校验 Bearer 令牌并将载荷放入请求 context，缺失或无效时返回 401
func RequireToken(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "需要认证"})
			return
		}

		claims, err := issuer.ParseToken(strings.TrimSpace(tokenString))
		if err != nil {
			msg := "Token无效或解析错误"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token已过期"
			}
			slog.Info("认证中间件: "+msg, "path", c.Request.URL.Path, "ip", c.ClientIP(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		slog.Debug("数据请求", "user", claims.User, "method", c.Request.Method, "path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(auth.ContextWithClaim(c.Request.Context(), claims))
		c.Next()
	}
}

const loginContextKey = "opalbridge.login"

// LoginCredentials 是令牌请求携带的凭据，表单与 JSON 请求体均可
type LoginCredentials struct {
	User     string `form:"user" json:"user" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

// Login 返回本次请求的凭据。请求体只解析一次，结果缓存在 gin 上下文中，
// 失败锁定与令牌处理器因此看到同一个用户名。
func Login(c *gin.Context) (LoginCredentials, error) {
	if v, ok := c.Get(loginContextKey); ok {
		if creds, ok := v.(LoginCredentials); ok {
			return creds, nil
		}
	}
	var creds LoginCredentials
	if err := c.ShouldBind(&creds); err != nil {
		return LoginCredentials{}, fmt.Errorf("%w: 用户名或密码不能为空", port.ErrInvalidArgument)
	}
	c.Set(loginContextKey, creds)
	return creds, nil
}
