package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/dkeye/RoomChat/internal/adapters/signal"
	"github.com/dkeye/RoomChat/internal/app"
	"github.com/dkeye/RoomChat/internal/app/orch"
	"github.com/dkeye/RoomChat/internal/config"
	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func newTestRouter(t *testing.T) (*gin.Engine, *app.Registry, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	static := t.TempDir()
	if err := os.WriteFile(filepath.Join(static, "index.html"), []byte("<html>chat</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Mode:           "test",
		StaticPath:     static,
		ReadLimit:      4096,
		PingPeriod:     time.Second,
		PongWait:       2 * time.Second,
		WriteTimeout:   time.Second,
		SendBuffer:     8,
		Secret:         "test-secret",
		AllowedOrigins: []string{"http://allowed.example"},
	}
	reg := app.NewRegistry(app.SimplePolicy{})
	ctl := signal.NewSignalWSController(&orch.Orchestrator{Registry: reg}, cfg)
	return SetupRouter(context.Background(), cfg, reg, ctl), reg, cfg
}

func TestRouter_Healthz(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestRouter_Rooms(t *testing.T) {
	r, reg, _ := newTestRouter(t)
	for i, room := range []string{"b", "a", "b"} {
		sid := core.SessionID(string(rune('x' + i)))
		if err := reg.Join(sid, nopConn{}, "u", domain.RoomName(room)); err != nil {
			t.Fatal(err)
		}
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

	var body struct {
		Rooms []app.RoomInfo `json:"rooms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []app.RoomInfo{{Name: "a", MemberCount: 1}, {Name: "b", MemberCount: 2}}
	if len(body.Rooms) != len(want) {
		t.Fatalf("rooms = %+v, want %+v", body.Rooms, want)
	}
	for i := range want {
		if body.Rooms[i] != want[i] {
			t.Errorf("rooms[%d] = %+v, want %+v", i, body.Rooms[i], want[i])
		}
	}
}

func TestRouter_IndexAndClientToken(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "chat") {
		t.Fatalf("GET / = %d %q", w.Code, w.Body.String())
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == clientTokenCookie && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("client token cookie not set")
	}
}

func TestRouter_Metrics(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "roomchat_") {
		t.Error("roomchat metrics missing from exposition")
	}
}

func TestRouter_WebSocketRejectsPlainGet(t *testing.T) {
	r, reg, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if reg.Count() != 0 {
		t.Error("failed upgrade registered a session")
	}
}

func TestWithCORS(t *testing.T) {
	r, _, cfg := newTestRouter(t)
	h := WithCORS(cfg, r)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://allowed.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://allowed.example" {
		t.Errorf("allowed origin header = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://other.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin got header %q", got)
	}
}
