// Package auth 签发与校验网关访问令牌 (JWT)
// file: internal/auth/token.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "OpalBridge"

// ErrInvalidToken 表示 JWT 无效、过期或解析失败。
var ErrInvalidToken = errors.New("invalid or expired token")

// Claim 定义 JWT 的载荷结构，Subject 为通过 Opal 认证的用户名
type Claim struct {
	User string `json:"user"`
	jwt.RegisteredClaims
}

// Issuer 使用 HMAC 密钥签发与校验令牌
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer 创建签发器，ttl <= 0 时为 24 小时
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("JWT 密钥不能为空")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{key: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// GenToken 为用户生成一个新的 JWT
func (i *Issuer) GenToken(user string) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claim{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("签名 JWT 失败: %w", err)
	}
	return signed, expires, nil
}

// ParseToken 解析并验证 JWT 字符串
func (i *Issuer) ParseToken(tokenString string) (*Claim, error) {
	claims := &Claim{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return i.key, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w (detail: %v)", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type ctxKey int

const claimKey ctxKey = 0

// ContextWithClaim 将已验证的载荷放入 context
func ContextWithClaim(ctx context.Context, c *Claim) context.Context {
	return context.WithValue(ctx, claimKey, c)
}

// ClaimFrom 从 context 中取出载荷，不存在时为 nil
func ClaimFrom(ctx context.Context) *Claim {
	claims, _ := ctx.Value(claimKey).(*Claim)
	return claims
}
