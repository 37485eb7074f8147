package signal_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dkeye/RoomChat/internal/adapters/signal"
	"github.com/dkeye/RoomChat/internal/app"
	"github.com/dkeye/RoomChat/internal/app/orch"
	"github.com/dkeye/RoomChat/internal/config"
	"github.com/dkeye/RoomChat/internal/core"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:            "test",
		Port:            8080,
		ReadLimit:       4096,
		PingPeriod:      time.Second,
		PongWait:        2 * time.Second,
		WriteTimeout:    time.Second,
		SendBuffer:      16,
		Secret:          "test",
		DefaultRoom:     "general",
		LogLevel:        "info",
		Backpressure:    "kick",
		AllowedOrigins:  []string{"*"},
		ShutdownTimeout: time.Second,
	}
}

func startServer(t *testing.T) (*app.Registry, *signal.SignalWSController, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	reg := app.NewRegistry(app.SimplePolicy{})
	ctl := signal.NewSignalWSController(&orch.Orchestrator{Registry: reg, DefaultRoom: "general"}, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
		if err := ctl.Wait(2 * time.Second); err != nil {
			t.Errorf("Wait() error = %v", err)
		}
	})
	return reg, ctl, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, raw string) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func next(t *testing.T, ws *websocket.Conn) core.Event {
	t.Helper()
	if err := ws.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	ev, err := core.DecodeEvent(data)
	if err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return ev
}

func expect(t *testing.T, ws *websocket.Conn, want core.Event) {
	t.Helper()
	if got := next(t, ws); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestHandleSignal_RoomConversation(t *testing.T) {
	reg, _, url := startServer(t)

	alice := dial(t, url)
	send(t, alice, `{"type":"join","username":"alice","room":"general"}`)
	expect(t, alice, core.JoinedNotice("alice", "general"))

	bob := dial(t, url)
	send(t, bob, `{"type":"join","username":"bob","room":"general"}`)
	expect(t, bob, core.JoinedNotice("bob", "general"))
	expect(t, alice, core.JoinedNotice("bob", "general"))

	send(t, alice, `{"type":"chat","username":"alice","message":"hi"}`)
	chat := core.Event{Type: core.EventChat, Username: "alice", Message: "hi"}
	expect(t, bob, chat)
	expect(t, alice, chat)

	if err := bob.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		t.Fatalf("close: %v", err)
	}
	expect(t, alice, core.LeftNotice("bob", "general"))

	if got := reg.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestHandleSignal_SwitchRoom(t *testing.T) {
	_, _, url := startServer(t)

	alice := dial(t, url)
	send(t, alice, `{"type":"join","username":"alice","room":"a"}`)
	expect(t, alice, core.JoinedNotice("alice", "a"))

	bob := dial(t, url)
	send(t, bob, `{"type":"join","username":"bob","room":"b"}`)
	expect(t, bob, core.JoinedNotice("bob", "b"))

	send(t, alice, `{"type":"switch_room","room":"b"}`)
	expect(t, bob, core.JoinedNotice("alice", "b"))

	send(t, alice, `{"type":"whoami"}`)
	expect(t, alice, core.Event{Type: core.EventWhoAmI, Username: "alice", Room: "b"})
}

func TestHandleSignal_AbruptDisconnectCleansUp(t *testing.T) {
	reg, _, url := startServer(t)

	alice := dial(t, url)
	send(t, alice, `{"type":"join","username":"alice","room":"general"}`)
	expect(t, alice, core.JoinedNotice("alice", "general"))

	ghost := dial(t, url)
	_ = ghost.Close()

	bob := dial(t, url)
	send(t, bob, `{"type":"join","username":"bob","room":"general"}`)
	expect(t, bob, core.JoinedNotice("bob", "general"))
	expect(t, alice, core.JoinedNotice("bob", "general"))

	_ = bob.Close()
	expect(t, alice, core.LeftNotice("bob", "general"))

	deadline := time.Now().Add(2 * time.Second)
	for reg.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Count() = %d, want 1", reg.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWsSignalConn_TrySendBackpressure(t *testing.T) {
	c := signal.NewWsSignalConn(nil, 1)
	if err := c.TrySend(core.Frame("a")); err != nil {
		t.Fatalf("first TrySend() error = %v", err)
	}
	if err := c.TrySend(core.Frame("b")); !errors.Is(err, signal.ErrBackpressure) {
		t.Fatalf("second TrySend() error = %v, want ErrBackpressure", err)
	}
}
