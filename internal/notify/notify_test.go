package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/chronicle/internal/turn"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func dialStream(t *testing.T, hub *Hub, campaignID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, campaignID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func TestHubDeliversToCampaignRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(quiet())
	go hub.Run(ctx)

	watcher := dialStream(t, hub, "c1")
	other := dialStream(t, hub, "c2")
	if env := readEnvelope(t, watcher); env.Type != "connected" {
		t.Fatalf("first message = %+v", env)
	}
	if env := readEnvelope(t, other); env.Type != "connected" {
		t.Fatalf("first message = %+v", env)
	}
	if hub.Clients() != 2 {
		t.Fatalf("clients = %d", hub.Clients())
	}

	if err := hub.TurnCommitted(ctx, turn.Summary{CampaignID: "c1", Turn: 3, Narration: "Rain on the docks."}); err != nil {
		t.Fatal(err)
	}
	env := readEnvelope(t, watcher)
	if env.Type != "turn" || env.CampaignID != "c1" {
		t.Fatalf("envelope = %+v", env)
	}
	data, _ := json.Marshal(env.Data)
	var s turn.Summary
	if err := json.Unmarshal(data, &s); err != nil || s.Turn != 3 || s.Narration != "Rain on the docks." {
		t.Fatalf("summary = %+v, %v", s, err)
	}

	other.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Fatal("other campaign received the turn")
	}
}

func TestHubBacklog(t *testing.T) {
	hub := NewHub(quiet())
	for i := 0; i < cap(hub.broadcast); i++ {
		if err := hub.TurnCommitted(context.Background(), turn.Summary{CampaignID: "c1"}); err != nil {
			t.Fatalf("broadcast %d: %v", i, err)
		}
	}
	if err := hub.TurnCommitted(context.Background(), turn.Summary{CampaignID: "c1"}); err != ErrHubBacklog {
		t.Fatalf("err = %v, want ErrHubBacklog", err)
	}
}

func TestRedisKeys(t *testing.T) {
	if got := ChannelFor("abc"); got != "chronicle:turns:abc" {
		t.Fatalf("channel = %q", got)
	}
	if got := recentKey("abc"); got != "chronicle:recent:abc" {
		t.Fatalf("recent key = %q", got)
	}
}

func TestRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := NewRedisPublisher(ctx, RedisOptions{Addr: "127.0.0.1:1"}, quiet()); err == nil {
		t.Fatal("expected ping error")
	}
}
