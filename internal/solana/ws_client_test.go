package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newLogsServer confirms the first logsSubscribe with subID and then writes
// the given notifications.
func newLogsServer(t *testing.T, subID int64, notifs []wsLogsValue) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		if req.Method != "logsSubscribe" {
			t.Errorf("expected logsSubscribe, got %s", req.Method)
		}
		if len(req.Params) != 2 || !strings.Contains(string(req.Params[0]), `"mentions":["testprogram"]`) {
			t.Errorf("unexpected params %s", msg)
		}

		c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": subID})

		for i, v := range notifs {
			c.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0",
				"method":  "logsNotification",
				"params": map[string]interface{}{
					"subscription": subID,
					"result": map[string]interface{}{
						"context": map[string]interface{}{"slot": 100 + i},
						"value":   v,
					},
				},
			})
		}

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	server := newLogsServer(t, 12345, []wsLogsValue{
		{Signature: "testsig", Logs: []string{"Program log: Test"}},
	})
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"testprogram"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
		if len(notif.Logs) != 1 {
			t.Errorf("expected 1 log, got %d", len(notif.Logs))
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_DropsOldestWhenFull(t *testing.T) {
	server := newLogsServer(t, 7, []wsLogsValue{
		{Signature: "a"}, {Signature: "b"}, {Signature: "c"},
	})
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.BufferSize = 1

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), &cfg)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"testprogram"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for client.Dropped() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 dropped notifications, got %d", client.Dropped())
		case <-time.After(10 * time.Millisecond):
		}
	}

	if notif := <-ch; notif.Signature != "c" {
		t.Errorf("expected newest notification c, got %s", notif.Signature)
	}
}

func TestWSClient_Close(t *testing.T) {
	server := newLogsServer(t, 1, nil)
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mentions: []string{"testprogram"}})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	if _, err := client.SubscribeLogs(ctx, LogsFilter{}); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClient_DialError(t *testing.T) {
	if _, err := NewWSClient(context.Background(), "ws://127.0.0.1:1", nil); err == nil {
		t.Error("expected dial error")
	}
}
