package events

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/framefold/timeline-engine/internal/models"
)

func newTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	router := gin.New()
	router.GET("/events", hub.ServeWS)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// wait for the hub to register the connection
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub, conn
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
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestHubPushesTimelineSnapshots(t *testing.T) {
	hub, conn := newTestHub(t)

	tl := models.NewTimeline()
	tl.Layers[0] = models.Layer{{ID: "v1", Type: models.SegmentTypeVideo, StartTime: 0, Duration: 5}}
	hub.PublishTimeline(tl)

	env := readEnvelope(t, conn)
	if env.Type != "timeline" {
		t.Errorf("type = %q, want timeline", env.Type)
	}
	payload, _ := json.Marshal(env.Data)
	if !strings.Contains(string(payload), `"v1"`) {
		t.Errorf("snapshot payload missing segment: %s", payload)
	}
}

func TestHubPushesSnapIndicator(t *testing.T) {
	hub, conn := newTestHub(t)

	hub.PublishSnap(&models.SnapIndicator{Time: 10, Layer: 0, Edge: models.SnapEdgeStart})
	env := readEnvelope(t, conn)
	if env.Type != "snap" {
		t.Errorf("type = %q, want snap", env.Type)
	}
}

func TestHubPushesSessionExpired(t *testing.T) {
	hub, conn := newTestHub(t)

	hub.PublishSessionExpired()
	env := readEnvelope(t, conn)
	if env.Type != "sessionExpired" {
		t.Errorf("type = %q, want sessionExpired", env.Type)
	}
}

func TestHubDropsClientOnDisconnect(t *testing.T) {
	hub, conn := newTestHub(t)

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("disconnected client never dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
