package utils

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// IdentityKey 是儲存在 context 中的使用者身分的鍵
const IdentityKey contextKey = "identity"

// WithIdentity 將已驗證的身分放入 context
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentityFromContext 從 context 中提取使用者身分
func GetIdentityFromContext(ctx context.Context) (string, error) {
	identity, ok := ctx.Value(IdentityKey).(string)
	if !ok || identity == "" {
		return "", errors.New("identity not found in context")
	}
	return identity, nil
}

// GetIdentityFromToken 從 JWT token 中提取使用者身分 (username claim)
func GetIdentityFromToken(tokenString string, jwtSecret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}

	identity, ok := claims["username"].(string)
	if !ok || identity == "" {
		return "", errors.New("username not found in token claims")
	}
	return identity, nil
}

// GenerateJWT 為用戶生成 JWT Token
// 正式的 token 由外部登入服務簽發，這裡只供測試與本機除錯的客戶端使用
func GenerateJWT(userID string, username string, secret string) (string, error) {
	claims := jwt.MapClaims{
		"userId":   userID,
		"username": username,
		"exp":      time.Now().Add(time.Hour * 24).Unix(), // Token 24 小時後過期
		"iat":      time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.New("failed to sign token")
	}
	return tokenString, nil
}
