package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v4"
	"github.com/hylla/taskflow/internal/adapters/server/common"
	"github.com/hylla/taskflow/internal/adapters/server/httpapi"
	"github.com/hylla/taskflow/internal/adapters/storage/sqlite"
	"github.com/hylla/taskflow/internal/app"
)

func newDeps(t *testing.T) (Dependencies, *bytes.Buffer) {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	auth, err := httpapi.NewAuthenticator("secret", "")
	if err != nil {
		t.Fatalf("NewAuthenticator() error = %v", err)
	}
	var logs bytes.Buffer
	logger := log.NewWithOptions(&logs, log.Options{Level: log.DebugLevel, Formatter: log.LogfmtFormatter})
	svc := app.NewService(repo, func() string { return "id" }, nil, app.ServiceConfig{})
	return Dependencies{
		Service: common.NewAppServiceAdapter(svc),
		Auth:    auth,
		Logger:  logger,
		Ready:   repo.Ping,
	}, &logs
}

func TestNewHandlerRoutesHealthAndAPI(t *testing.T) {
	deps, logs := newDeps(t)
	handler, cfg, err := NewHandler(Config{}, deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	if cfg.HTTPBind != defaultBindAddress || cfg.APIEndpoint != "/api" {
		t.Fatalf("unexpected normalized config %#v", cfg)
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Fatalf("%s = %d %s", path, rec.Code, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated api status = %d, want 401", rec.Code)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userId": "u1"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated api status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(logs.String(), "path=/api/projects") {
		t.Fatalf("expected request log line, got %q", logs.String())
	}
}

func TestReadyzReportsUnavailable(t *testing.T) {
	deps, _ := newDeps(t)
	deps.Ready = func(context.Context) error { return errors.New("db down") }
	handler, _, err := NewHandler(Config{APIEndpoint: "v2/"}, deps)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rec.Code)
	}
}

func TestNewHandlerRequiresDependencies(t *testing.T) {
	deps, _ := newDeps(t)
	if _, _, err := NewHandler(Config{}, Dependencies{Auth: deps.Auth}); err == nil {
		t.Fatal("expected error without service")
	}
	if _, _, err := NewHandler(Config{}, Dependencies{Service: deps.Service}); err == nil {
		t.Fatal("expected error without authenticator")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"":          "/api",
		"/":         "/api",
		"api/":      "/api",
		" /v1/api ": "/v1/api",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in, "/api"); got != want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	deps, _ := newDeps(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Config{HTTPBind: addr}, deps)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
