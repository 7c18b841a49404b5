package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resoniratech-svg/school-erp-manoj-sub001/config"
	"github.com/resoniratech-svg/school-erp-manoj-sub001/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "middleware-test-secret-0123456789",
		AccessTokenTTL: 15 * time.Minute,
		Issuer:         "school-erp-test",
	})
}

// newEngine 挂上认证链，/probe 回显注入的作用域
func newEngine(mgr *jwt.Manager, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append([]gin.HandlerFunc{JWTAuth(mgr, nil)}, extra...)
	chain = append(chain, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxTenantID)+"/"+c.GetString(CtxBranchID)+"/"+c.GetString(CtxUserID))
	})
	r.GET("/probe", chain...)
	return r
}

func doGet(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/probe", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	r.ServeHTTP(w, req)
	return w
}

// ── JWTAuth ──

func TestJWTAuth_InjectsScope(t *testing.T) {
	mgr := newTestManager()
	token, err := mgr.GenerateAccessToken("u1", "admin", "tenant-a", "branch-1")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	w := doGet(newEngine(mgr), "Bearer "+token)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "tenant-a/branch-1/u1" {
		t.Errorf("unexpected scope: %s", w.Body.String())
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	mgr := newTestManager()
	noBranch, _ := mgr.GenerateAccessToken("u1", "admin", "tenant-a", "")

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"缺少认证头", "", http.StatusUnauthorized},
		{"格式错误", "Token abc", http.StatusUnauthorized},
		{"签名无效", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"缺少分校", "Bearer " + noBranch, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := doGet(newEngine(mgr), tc.header); w.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, w.Code)
			}
		})
	}
}

// ── RoleAuth ──

func TestRoleAuth(t *testing.T) {
	mgr := newTestManager()
	r := newEngine(mgr, RoleAuth("admin"))

	admin, _ := mgr.GenerateAccessToken("u1", "admin", "t", "b")
	teacher, _ := mgr.GenerateAccessToken("u2", "teacher", "t", "b")

	if w := doGet(r, "Bearer "+admin); w.Code != http.StatusOK {
		t.Errorf("admin: expected 200, got %d", w.Code)
	}
	if w := doGet(r, "Bearer "+teacher); w.Code != http.StatusForbidden {
		t.Errorf("teacher: expected 403, got %d", w.Code)
	}
}

// ── RequestID ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" || w.Header().Get(requestIDHeader) != "abc-123" {
		t.Errorf("expected passthrough id, got body=%s header=%s", w.Body.String(), w.Header().Get(requestIDHeader))
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", requestIDMaxLen+1))
	r.ServeHTTP(w, req)
	if len(w.Body.String()) != 36 {
		t.Errorf("overlong id should be replaced by a uuid, got %q", w.Body.String())
	}
}

// ── BodyLimit ──

func TestBodyLimit_DeclaredLength(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"entries":[1,2,3]}`))
	r.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

// ── RateLimit ──

func TestRateLimit_NoRedisPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(nil, 1, time.Minute))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimitKey_PrefersUser(t *testing.T) {
	r := gin.New()
	var keys []string
	r.POST("/timetables/:id/entries", func(c *gin.Context) {
		keys = append(keys, rateLimitKey(c))
		c.Set(CtxUserID, "u1")
		keys = append(keys, rateLimitKey(c))
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/timetables/x/entries", nil))

	if len(keys) != 2 {
		t.Fatalf("handler not reached")
	}
	if !strings.HasPrefix(keys[0], "rate_limit:ip:") {
		t.Errorf("anonymous key should be per ip: %s", keys[0])
	}
	if keys[1] != "rate_limit:user:u1:POST:/timetables/:id/entries" {
		t.Errorf("unexpected user key: %s", keys[1])
	}
}
