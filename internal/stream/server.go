// Package stream implements the Event Stream Server: an SSE-over-HTTP
// push endpoint with replay buffering, predicate filtering, bearer-token
// admission, a connection cap, and periodic heartbeats. Lifecycle
// management (context cancellation, WaitGroup draining) gives
// goroutine-leak-free shutdown of long-lived per-connection writers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitriimaksimovdevelop/memguard/internal/model"
	"github.com/dmitriimaksimovdevelop/memguard/internal/resilience"
	"github.com/dmitriimaksimovdevelop/memguard/internal/ring"
)

// Config holds the Server's tunables.
type Config struct {
	BufferSize        int
	MaxConnections    int
	HeartbeatInterval time.Duration
	CORSEnabled       bool
	Authenticate      func(r *http.Request) bool // nil disables auth
}

// Stats is the snapshot returned by GET /stats.
type Stats struct {
	ActiveSubscribers int       `json:"activeSubscribers"`
	TotalBroadcasts   uint64    `json:"totalBroadcasts"`
	TotalDropped      uint64    `json:"totalDropped"`
	StartedAt         time.Time `json:"startedAt"`
}

// ChannelInfo is one entry of GET /channels.
type ChannelInfo struct {
	Channel         string    `json:"channel"`
	Subscribers     int       `json:"subscribers"`
	LastBroadcastAt time.Time `json:"lastBroadcastAt"`
}

type subscriberConn struct {
	model.Subscriber
	w       http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
	writeMu sync.Mutex
}

// Server owns the subscribers map and replay buffer exclusively (§5).
type Server struct {
	cfg   Config
	clock resilience.Clock

	mu              sync.Mutex
	subscribers     map[string]*subscriberConn
	replay          *ring.Ring[model.StreamEvent]
	lastBroadcastAt map[string]time.Time
	startedAt       time.Time
	totalBroadcasts uint64
	totalDropped    uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	events chan Event
}

// Event is published for connect/disconnect lifecycle notifications.
type Event struct {
	Type          string // streaming-client-connected | streaming-client-disconnected | streaming-started | streaming-stopped
	SubscriberID  string
}

// New constructs a Server. Start must be called to begin the heartbeat
// loop; the HTTP handlers are usable immediately via Handler().
func New(cfg Config, clock resilience.Clock) *Server {
	if clock == nil {
		clock = resilience.RealClock
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:             cfg,
		clock:           clock,
		subscribers:     make(map[string]*subscriberConn),
		replay:          ring.New[model.StreamEvent](cfg.BufferSize),
		lastBroadcastAt: make(map[string]time.Time),
		startedAt:       clock.Now(),
		ctx:             ctx,
		cancel:          cancel,
		events:          make(chan Event, 32),
	}
}

// Events returns the channel lifecycle notifications publish on.
func (s *Server) Events() <-chan Event { return s.events }

func (s *Server) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// Start begins the heartbeat loop.
func (s *Server) Start() {
	s.wg.Add(1)
	go s.heartbeatLoop()
	s.emit(Event{Type: "streaming-started"})
}

// Stop cancels all subscriber writer goroutines and the heartbeat loop,
// and waits for them to drain.
func (s *Server) Stop() {
	s.cancel()
	s.wg.Wait()
	s.emit(Event{Type: "streaming-stopped"})
}

func (s *Server) heartbeatLoop() {
	defer s.wg.Done()
	if s.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.heartbeatOnce()
		}
	}
}

func (s *Server) heartbeatOnce() {
	stats := s.Stats()
	payload, _ := json.Marshal(stats)
	frame := model.StreamEvent{
		ID:        uuid.NewString(),
		Channel:   "heartbeat",
		Timestamp: s.clock.Now(),
		Type:      "heartbeat",
		Payload:   map[string]any{"stats": json.RawMessage(payload)},
	}

	s.mu.Lock()
	conns := make([]*subscriberConn, 0, len(s.subscribers))
	for _, c := range s.subscribers {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := s.writeFrame(c, frame); err != nil {
			s.deregister(c.ID)
			continue
		}
		s.mu.Lock()
		c.LastHeartbeat = s.clock.Now()
		s.mu.Unlock()
	}
}

// ServeHTTP dispatches the four endpoints of §4.7.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodOptions:
		s.handleCORSPreflight(w, r)
	case r.URL.Path == "/stream":
		s.handleStream(w, r)
	case r.URL.Path == "/stats":
		s.handleStats(w, r)
	case r.URL.Path == "/channels":
		s.handleChannels(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCORSPreflight(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.CORSEnabled {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Authenticate != nil && !s.cfg.Authenticate(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	if s.cfg.MaxConnections > 0 && len(s.subscribers) >= s.cfg.MaxConnections {
		s.mu.Unlock()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	if s.cfg.CORSEnabled {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable intermediary buffering (nginx and similar)
	w.WriteHeader(http.StatusOK)

	channels := parseChannels(r.URL.Query().Get("channels"))
	pred := parsePredicate(r.URL.Query().Get("filters"))

	conn := &subscriberConn{
		Subscriber: model.Subscriber{
			ID:                 uuid.NewString(),
			SubscribedChannels: channels,
			Filter:             pred,
			ConnectedAt:        s.clock.Now(),
			LastHeartbeat:      s.clock.Now(),
		},
		w:       w,
		flusher: flusher,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.subscribers[conn.ID] = conn
	s.mu.Unlock()
	s.emit(Event{Type: "streaming-client-connected", SubscriberID: conn.ID})

	connected := model.StreamEvent{
		ID:        uuid.NewString(),
		Channel:   "connected",
		Timestamp: s.clock.Now(),
		Type:      "connected",
		Payload:   map[string]any{"subscriberId": conn.ID},
	}
	_ = s.writeFrame(conn, connected)

	s.mu.Lock()
	replay := s.replay.ToArray()
	s.mu.Unlock()
	for _, ev := range replay {
		if conn.WantsChannel(ev.Channel) && conn.Filter.Match(ev) {
			if err := s.writeFrame(conn, ev); err != nil {
				s.deregister(conn.ID)
				return
			}
		}
	}

	select {
	case <-r.Context().Done():
	case <-s.ctx.Done():
	case <-conn.done:
	}
	s.deregister(conn.ID)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Stats())
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Channels())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func parseChannels(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	cur := ""
	for _, c := range raw {
		if c == ',' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(c)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func parsePredicate(raw string) model.Predicate {
	if raw == "" {
		return model.Predicate{}
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return model.Predicate{}
	}
	var p model.Predicate
	if err := json.Unmarshal([]byte(decoded), &p); err != nil {
		return model.Predicate{}
	}
	return p
}

// writeFrame writes one `data: <json>\n\n` frame and flushes immediately.
func (s *Server) writeFrame(c *subscriberConn, ev model.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := fmt.Fprintf(c.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

func (s *Server) deregister(id string) {
	s.mu.Lock()
	conn, ok := s.subscribers[id]
	if ok {
		delete(s.subscribers, id)
	}
	s.mu.Unlock()
	if ok {
		close(conn.done)
		s.emit(Event{Type: "streaming-client-disconnected", SubscriberID: id})
	}
}

// Broadcast stamps and appends data to the replay buffer, then attempts a
// best-effort write to every subscriber whose channel and predicate match
// (§4.7). A write failure deregisters that subscriber.
func (s *Server) Broadcast(channel string, eventType string, payload map[string]any) {
	if channel == "" {
		channel = "default"
	}
	ev := model.StreamEvent{
		ID:        uuid.NewString(),
		Channel:   channel,
		Timestamp: s.clock.Now(),
		Type:      eventType,
		Payload:   payload,
	}

	s.mu.Lock()
	s.replay.Push(ev)
	s.lastBroadcastAt[channel] = ev.Timestamp
	atomic.AddUint64(&s.totalBroadcasts, 1)
	conns := make([]*subscriberConn, 0, len(s.subscribers))
	for _, c := range s.subscribers {
		if c.WantsChannel(channel) && c.Filter.Match(ev) {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := s.writeFrame(c, ev); err != nil {
			atomic.AddUint64(&s.totalDropped, 1)
			s.deregister(c.ID)
		}
	}
}

// Stats returns a snapshot of transport counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		ActiveSubscribers: len(s.subscribers),
		TotalBroadcasts:   atomic.LoadUint64(&s.totalBroadcasts),
		TotalDropped:      atomic.LoadUint64(&s.totalDropped),
		StartedAt:         s.startedAt,
	}
}

// Channels returns per-channel subscriber counts and last-broadcast times.
func (s *Server) Channels() []ChannelInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int)
	for _, c := range s.subscribers {
		if len(c.SubscribedChannels) == 0 {
			counts["default"]++
			continue
		}
		for _, ch := range c.SubscribedChannels {
			counts[ch]++
		}
	}
	out := make([]ChannelInfo, 0, len(counts))
	for ch, n := range counts {
		out = append(out, ChannelInfo{Channel: ch, Subscribers: n, LastBroadcastAt: s.lastBroadcastAt[ch]})
	}
	return out
}
