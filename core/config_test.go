package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestLoadDefaultsAllowLocalFrontendOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := Load()
	want := map[string]bool{
		"http://127.0.0.1:5500": true,
		"http://127.0.0.1:3000": true,
		"http://localhost:3000": true,
		"http://localhost:5500": true,
	}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %v, want %d defaults", cfg.AllowedOrigins, len(want))
	}
	for _, o := range cfg.AllowedOrigins {
		if !want[o] {
			t.Errorf("unexpected default origin %q", o)
		}
	}
}

func TestLoadAllowedOriginsOverride(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://sastokinmel.com, https://www.sastokinmel.com")

	cfg := Load()
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://sastokinmel.com" {
		t.Fatalf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestDefaultOriginsPassOriginCheck(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(OriginRefererMiddleware(Load()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]int{
		"http://localhost:3000": http.StatusOK,
		"http://127.0.0.1:5500": http.StatusOK,
		"https://evil.example":  http.StatusForbidden,
		"":                      http.StatusOK,
	}
	for origin, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("origin %q: status = %d, want %d", origin, w.Code, want)
		}
	}
}
