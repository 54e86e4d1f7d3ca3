package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jcvilalta/MineDeezCoords/internal/coords"
	"github.com/jcvilalta/MineDeezCoords/internal/mirror"
)

func sampleSummary(t *testing.T, name string) mirror.Summary {
	t.Helper()
	doc := coords.NewDocument()
	if _, err := doc.Upsert(coords.Overworld, name, coords.Coordinate{X: 1, Y: 2, Z: 3}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return mirror.Render(doc, "alice")
}

func readSummary(t *testing.T, conn *websocket.Conn) SummaryMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg SummaryMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestWSHandler_SendsLatestThenUpdates(t *testing.T) {
	s := NewServer(nil)
	s.Publish(sampleSummary(t, "spawn"))

	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readSummary(t, conn)
	if first.Type != TypeSummary || first.Seq != 1 || first.ProtocolVersion != Version {
		t.Fatalf("first=%+v", first)
	}
	if got := first.Summary.Blocks[0].Lines; len(got) != 1 || got[0] != "Spawn: X=1 Y=2 Z=3" {
		t.Fatalf("lines=%v", got)
	}

	// Wait for the session to be registered before publishing again.
	deadline := time.Now().Add(2 * time.Second)
	for s.Stats().Subscribers != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	s.Publish(sampleSummary(t, "farm"))
	second := readSummary(t, conn)
	if second.Seq != 2 || second.Summary.Blocks[0].Lines[0] != "Farm: X=1 Y=2 Z=3" {
		t.Fatalf("second=%+v", second)
	}
}

func TestPublish_DropsSlowConsumer(t *testing.T) {
	s := NewServer(nil)
	ch := s.subscribe("O1")
	for i := 0; i < subscriberBuffer+1; i++ {
		s.Publish(mirror.Summary{Title: "t"})
	}
	st := s.Stats()
	if st.Subscribers != 0 || st.DroppedTotal != 1 || st.PublishedTotal != uint64(subscriberBuffer+1) {
		t.Fatalf("stats=%+v", st)
	}
	n := 0
	for range ch {
		n++
	}
	if n != subscriberBuffer {
		t.Fatalf("buffered=%d want %d", n, subscriberBuffer)
	}
}

func TestLatestHandler(t *testing.T) {
	s := NewServer(nil)
	s.Publish(sampleSummary(t, "spawn"))

	req := httptest.NewRequest(http.MethodGet, "/observer/latest", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	rec := httptest.NewRecorder()
	s.LatestHandler()(rec, req)
	var resp LatestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Seq != 1 || resp.Summary == nil || resp.Summary.Title != mirror.Title {
		t.Fatalf("resp=%+v", resp)
	}

	req.RemoteAddr = "10.0.0.5:5000"
	rec = httptest.NewRecorder()
	s.LatestHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d want 403", rec.Code)
	}
}
