package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		cfg    Config
		path   string
		header string
		want   int
	}{
		{"disabled", Config{}, "/api/v1/positions", "", http.StatusNoContent},
		{"missing token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/positions", "", http.StatusUnauthorized},
		{"wrong token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/positions", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", Config{Enabled: true, Token: "s3cret"}, "/api/v1/positions", "Basic s3cret", http.StatusUnauthorized},
		{"bare token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/positions", "s3cret", http.StatusUnauthorized},
		{"valid token", Config{Enabled: true, Token: "s3cret"}, "/api/v1/positions", "Bearer s3cret", http.StatusNoContent},
		{"exempt health check", Config{Enabled: true, Token: "s3cret"}, "/healthz", "", http.StatusNoContent},
		{"exempt metadata", Config{Enabled: true, Token: "s3cret"}, "/api/v1/tle/metadata", "", http.StatusNoContent},
		{"refresh is protected", Config{Enabled: true, Token: "s3cret"}, "/api/v1/tle/refresh", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Middleware(tt.cfg)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if rec.Code == http.StatusUnauthorized && rec.Header().Get("Content-Type") != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}
