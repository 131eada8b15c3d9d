// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"OpalBridge/internal/auth"
	"OpalBridge/internal/core/port"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// StatusFor 将错误映射为 HTTP 状态码
func StatusFor(err error) int {
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve), errors.Is(err, port.ErrInvalidArgument), errors.Is(err, port.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, port.ErrDesignNotFound), errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, port.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, port.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, port.ErrConnection), errors.Is(err, port.ErrSchemaFetch), errors.Is(err, port.ErrPageFetch),
		errors.Is(err, port.ErrSchemaMismatch), errors.Is(err, port.ErrUnknownValueType),
		errors.Is(err, port.ErrMalformedDate), errors.Is(err, port.ErrMalformedTimestamp), errors.Is(err, port.ErrNumericParse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
// 处理器通过 c.Error(err) 附加错误，这里只处理最后一个。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		status := StatusFor(err)
		var ve validator.ValidationErrors
		switch {
		case errors.As(err, &ve):
			c.JSON(status, gin.H{"error": "请求参数验证失败", "details": ve.Error()})
		case status == http.StatusInternalServerError:
			slog.Error("请求处理失败", "path", c.FullPath(), "error", err)
			c.JSON(status, gin.H{"error": "服务器内部错误"})
		default:
			if status >= http.StatusInternalServerError {
				slog.Warn("上游请求失败", "path", c.FullPath(), "status", status, "error", err)
			}
			c.JSON(status, gin.H{"error": err.Error()})
		}
	}
}
