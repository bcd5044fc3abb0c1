package feed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/roleportal/internal/identity"
)

const testUser = "175928847299117063"

func newFeedServer(t *testing.T, hub *Hub) string {
	t.Helper()
	r := chi.NewRouter()
	r.With(identity.Middleware).Handle("/ws/user/{userID}/events", NewWebSocketHandler(hub, []string{"*"}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForSubscribers(t *testing.T, hub *Hub, userID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Count(userID) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers for %s, got %d", n, userID, hub.Count(userID))
}

func TestWebSocketDeliversEvents(t *testing.T) {
	hub := NewHub()
	base := newFeedServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, base+"/ws/user/"+testUser+"/events?session_id=tab-1", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	waitForSubscribers(t, hub, testUser, 1)
	hub.Publish(Event{Type: EventRoleAssigned, UserID: testUser, RoleID: "r1", RoleName: "Artist"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != EventRoleAssigned || ev.RoleName != "Artist" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebSocketPingPong(t *testing.T) {
	hub := NewHub()
	base := newFeedServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, base+"/ws/user/"+testUser+"/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"type":"pong"}` {
		t.Fatalf("expected pong, got %s", data)
	}
}

func TestWebSocketUnregistersOnClose(t *testing.T) {
	hub := NewHub()
	base := newFeedServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, base+"/ws/user/"+testUser+"/events", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForSubscribers(t, hub, testUser, 1)

	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	waitForSubscribers(t, hub, testUser, 0)
}

func TestWebSocketRejectsInvalidUserID(t *testing.T) {
	hub := NewHub()
	base := newFeedServer(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, base+"/ws/user/not-a-snowflake/events", nil)
	if err == nil {
		t.Fatal("expected dial to fail for invalid user id")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %+v", resp)
	}
}
