package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hidden_mines/internal/logger"
	"hidden_mines/internal/service"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestJWTSetsActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service.InitJWT("test-secret")
	actor := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	token, err := service.GenerateJWT(actor)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	r := gin.New()
	r.GET("/me", JWT(), func(c *gin.Context) {
		got, ok := Actor(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, got.Hex())
	})

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"valid", "Bearer " + token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"no scheme", token, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.code, w.Code)
		}
		if tc.code == http.StatusOK && w.Body.String() != actor.Hex() {
			t.Fatalf("%s: unexpected actor %s", tc.name, w.Body.String())
		}
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestID(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	id := w.Header().Get(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil || w.Body.String() != id {
		t.Fatalf("expected generated id, got header %q body %q", id, w.Body.String())
	}

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, given)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != given {
		t.Fatalf("expected client id to be kept, got %q", w.Body.String())
	}
}

func TestLimitersFailOpenWithoutRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	CloseRedis()

	r := gin.New()
	r.GET("/ip", RedisRateLimit(0, 0), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/actor", ActorRateLimit("reveal", 0, 0), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/ip", "/actor"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNoContent {
			t.Fatalf("%s: expected pass-through, got %d", path, w.Code)
		}
	}
}
