// middleware/auth_middleware.go
package middleware

import (
	"log"
	"net/http"
	"strings"

	"go-chat/realtime/utils"
)

// JWTMiddleware 驗證 JWT Token 並將使用者身分放入 context
// 瀏覽器的 WebSocket 無法設定 header，因此也接受 ?token= 查詢參數
func JWTMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := tokenFromRequest(r)
			if !ok {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			identity, err := utils.GetIdentityFromToken(tokenString, jwtSecret)
			if err != nil {
				log.Printf("Invalid JWT token: %v", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithIdentity(r.Context(), identity)))
		})
	}
}

func tokenFromRequest(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := r.URL.Query().Get("token")
		return token, token != ""
	}

	// Authorization: Bearer <token>
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], parts[1] != ""
}
