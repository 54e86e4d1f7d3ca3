package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jcvilalta/MineDeezCoords/internal/mirror"
)

const subscriberBuffer = 8

// Server is a read-only live feed of the rendered summary for local
// dashboards. Publish never blocks: slow subscribers miss intermediate
// summaries and are disconnected once their buffer is full.
type Server struct {
	log      *log.Logger
	now      func() time.Time
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu     sync.Mutex
	seq    uint64
	latest []byte
	last   *mirror.Summary
	subs   map[string]chan []byte

	publishedTotal atomic.Uint64
	droppedTotal   atomic.Uint64
}

func NewServer(logger *log.Logger) *Server {
	return &Server{
		log: logger,
		now: time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // loopback only
		},
		subs: make(map[string]chan []byte),
	}
}

func (s *Server) Publish(summary mirror.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	b, err := json.Marshal(SummaryMsg{
		Type:            TypeSummary,
		ProtocolVersion: Version,
		Seq:             s.seq,
		SentAt:          s.now().UTC().Format(time.RFC3339),
		Summary:         summary,
	})
	if err != nil {
		s.logf("observer encode failed err=%v", err)
		return
	}
	s.latest = b
	s.last = &summary
	s.publishedTotal.Add(1)
	for id, ch := range s.subs {
		select {
		case ch <- b:
		default:
			s.droppedTotal.Add(1)
			close(ch)
			delete(s.subs, id)
			s.logf("observer drop session=%s reason=slow_consumer", id)
		}
	}
}

type Stats struct {
	Subscribers    int
	PublishedTotal uint64
	DroppedTotal   uint64
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	n := len(s.subs)
	s.mu.Unlock()
	return Stats{Subscribers: n, PublishedTotal: s.publishedTotal.Load(), DroppedTotal: s.droppedTotal.Load()}
}

func (s *Server) LatestHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		s.mu.Lock()
		resp := LatestResponse{ProtocolVersion: Version, Seq: s.seq, Subscribers: len(s.subs), Summary: s.last}
		s.mu.Unlock()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := s.subscribe(sid)
		defer s.unsubscribe(sid)

		// The feed is one way; the reader only notices the client leaving.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-closed:
				return
			case b, ok := <-out:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "slow consumer"), time.Now().Add(time.Second))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

// subscribe registers a session and queues the latest summary, if any.
func (s *Server) subscribe(sid string) chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest != nil {
		ch <- s.latest
	}
	s.subs[sid] = ch
	return ch
}

func (s *Server) unsubscribe(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[sid]; ok {
		close(ch)
		delete(s.subs, sid)
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
