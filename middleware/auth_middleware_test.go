package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go-chat/realtime/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := utils.GetIdentityFromContext(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Write([]byte(identity))
	})
}

func TestJWTMiddleware(t *testing.T) {
	token, err := utils.GenerateJWT("u-1", "alice", testSecret)
	require.NoError(t, err)
	handler := JWTMiddleware(testSecret)(echoIdentity())

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{name: "bearer header", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "query token", query: "?token=" + token, wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "missing token", wantStatus: http.StatusUnauthorized},
		{name: "bad scheme", header: "Basic " + token, wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws/chat/r1"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}
