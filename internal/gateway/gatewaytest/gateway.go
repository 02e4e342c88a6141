// Package gatewaytest provides an in-process translation gateway that speaks
// the same protocol as the real one: a WebSocket endpoint that greets each
// connection with a room id and pushes results, and a stateless translate
// endpoint that queues jobs for a session.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/ytkinroman/trans-app/internal/gateway"
)

const (
	// WebSocketPath is where the gateway accepts streaming connections
	WebSocketPath = "/ws"
	// APIPrefix is the base path of the stateless API
	APIPrefix = "/api/v1/"

	writeWait = 5 * time.Second
)

// TranslateFunc produces a translation or an error the gateway reports as unavailable
type TranslateFunc func(text, translatorCode, targetLang string) (string, error)

// Option configures a Gateway
type Option func(*Gateway)

// WithSessionIDs makes successive connections receive the given ids. The
// last id is reused once the list is exhausted.
func WithSessionIDs(ids ...string) Option {
	return func(g *Gateway) {
		g.sessionIDs = append([]string(nil), ids...)
	}
}

// WithHello overrides the greeting sent on connect
func WithHello(fn func(sessionID string) string) Option {
	return func(g *Gateway) {
		g.hello = fn
	}
}

// WithTranslator sets the function used to answer jobs
func WithTranslator(fn TranslateFunc) Option {
	return func(g *Gateway) {
		g.translate = fn
	}
}

// WithPushDelay delays every pushed result
func WithPushDelay(d time.Duration) Option {
	return func(g *Gateway) {
		g.pushDelay = d
	}
}

// Gateway is an http.Handler implementing the gateway protocol
type Gateway struct {
	router   *httprouter.Router
	upgrader websocket.Upgrader

	mu             sync.Mutex
	sessionIDs     []string
	connectCount   int
	sessions       map[string]*peer
	calls          []gateway.CallBody
	translateCode  int
	dropResults    bool
	refuseUpgrade  bool
	closeOnRequest bool
	hello          func(string) string
	translate      TranslateFunc
	pushDelay      time.Duration
}

type peer struct {
	id      string
	conn    *websocket.Conn
	queue   chan []byte
	writeMu sync.Mutex
	once    sync.Once
}

// New creates a Gateway
func New(opts ...Option) *Gateway {
	g := &Gateway{
		sessions:      make(map[string]*peer),
		translateCode: http.StatusOK,
		hello: func(id string) string {
			return fmt.Sprintf(`{"room_id":"room_%s"}`, id)
		},
		translate: func(text, _, targetLang string) (string, error) {
			return fmt.Sprintf("[%s] %s", targetLang, text), nil
		},
	}
	for _, opt := range opts {
		opt(g)
	}

	g.router = httprouter.New()
	g.router.GET(WebSocketPath, g.handleWebSocket)
	g.router.POST(APIPrefix+gateway.TranslatePath, g.handleTranslate)
	return g
}

// ServeHTTP implements http.Handler
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.ServeHTTP(w, r)
}

// SetTranslateStatus makes the translate endpoint answer with code.
// Any code other than 200 queues nothing.
func (g *Gateway) SetTranslateStatus(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.translateCode = code
}

// SetDropResults makes the gateway accept jobs but never push a result
func (g *Gateway) SetDropResults(drop bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropResults = drop
}

// SetRefuseConnections makes the WebSocket endpoint reject upgrades
func (g *Gateway) SetRefuseConnections(refuse bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refuseUpgrade = refuse
}

// SetCloseOnRequest makes the gateway accept the next jobs and then drop the
// session's socket instead of answering
func (g *Gateway) SetCloseOnRequest(close bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closeOnRequest = close
}

// ConnectCount returns how many WebSocket connections were accepted
func (g *Gateway) ConnectCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connectCount
}

// Calls returns the translate calls received so far
func (g *Gateway) Calls() []gateway.CallBody {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.CallBody(nil), g.calls...)
}

// Push sends raw data to the session's socket
func (g *Gateway) Push(sessionID string, data string) error {
	g.mu.Lock()
	p, ok := g.sessions[sessionID]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown session %q", sessionID)
	}
	p.enqueue([]byte(data))
	return nil
}

// DropConnections closes every open socket from the server side
func (g *Gateway) DropConnections() {
	g.mu.Lock()
	peers := make([]*peer, 0, len(g.sessions))
	for _, p := range g.sessions {
		peers = append(peers, p)
	}
	g.sessions = make(map[string]*peer)
	g.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
}

func (g *Gateway) nextSessionID() string {
	g.connectCount++
	if len(g.sessionIDs) == 0 {
		return fmt.Sprintf("s%d", g.connectCount)
	}
	idx := g.connectCount - 1
	if idx >= len(g.sessionIDs) {
		idx = len(g.sessionIDs) - 1
	}
	return g.sessionIDs[idx]
}

func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	g.mu.Lock()
	refuse := g.refuseUpgrade
	g.mu.Unlock()
	if refuse {
		http.Error(w, "gateway unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	g.mu.Lock()
	id := g.nextSessionID()
	p := &peer{id: id, conn: conn, queue: make(chan []byte, 64)}
	if old, ok := g.sessions[id]; ok {
		go old.close()
	}
	g.sessions[id] = p
	hello := g.hello(id)
	delay := g.pushDelay
	g.mu.Unlock()

	if hello != "" {
		if err := p.write([]byte(hello)); err != nil {
			p.close()
			return
		}
	}

	go p.writeLoop(delay)
	go g.readLoop(p)
}

// readLoop drains the socket so control frames are answered
func (g *Gateway) readLoop(p *peer) {
	defer func() {
		g.mu.Lock()
		if g.sessions[p.id] == p {
			delete(g.sessions, p.id)
		}
		g.mu.Unlock()
		p.close()
	}()
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (g *Gateway) handleTranslate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, gateway.CallResponse{Status: "error", Message: err.Error()})
		return
	}

	var call gateway.CallBody
	if err := json.Unmarshal(body, &call); err != nil {
		writeJSON(w, http.StatusBadRequest, gateway.CallResponse{Status: "error", Message: "invalid body"})
		return
	}

	g.mu.Lock()
	g.calls = append(g.calls, call)
	code := g.translateCode
	drop := g.dropResults
	closeConn := g.closeOnRequest
	p, ok := g.sessions[call.WSSessionID]
	translate := g.translate
	g.mu.Unlock()

	if code != http.StatusOK {
		writeJSON(w, code, gateway.CallResponse{Status: "error", Message: "rejected"})
		return
	}
	if call.Method != gateway.MethodTranslate {
		writeJSON(w, http.StatusOK, gateway.CallResponse{Status: "error", Message: "unknown method"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, gateway.CallResponse{Status: "error", Message: "unknown session"})
		return
	}

	writeJSON(w, http.StatusOK, gateway.CallResponse{Status: gateway.StatusSuccess})

	switch {
	case closeConn:
		p.close()
	case drop:
	default:
		p.enqueue(resultMessage(translate(call.Payload.Text, call.Payload.TranslatorCode, call.Payload.TargetLang)))
	}
}

func resultMessage(text string, err error) []byte {
	var msg interface{}
	if err != nil {
		msg = map[string]interface{}{"error": err.Error()}
	} else {
		msg = map[string]interface{}{
			"result": map[string]interface{}{
				"result": map[string]interface{}{"text": text},
			},
		}
	}
	data, _ := json.Marshal(msg)
	return data
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (p *peer) enqueue(data []byte) {
	defer func() {
		// queue closed by a concurrent close
		_ = recover()
	}()
	p.queue <- data
}

func (p *peer) writeLoop(delay time.Duration) {
	for data := range p.queue {
		if delay > 0 {
			time.Sleep(delay)
		}
		if err := p.write(data); err != nil {
			return
		}
	}
}

func (p *peer) write(data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.queue)
		_ = p.conn.Close()
	})
}

// Server is a Gateway listening on a loopback port
type Server struct {
	*Gateway
	HTTP *httptest.Server
}

// NewServer starts a Gateway on a loopback port
func NewServer(opts ...Option) *Server {
	g := New(opts...)
	return &Server{Gateway: g, HTTP: httptest.NewServer(g)}
}

// WebSocketURL is the streaming endpoint of s
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + WebSocketPath
}

// APIURL is the API base URL of s, with trailing slash
func (s *Server) APIURL() string {
	return s.HTTP.URL + APIPrefix
}

// Close drops all sockets and stops the server
func (s *Server) Close() {
	s.DropConnections()
	s.HTTP.Close()
}
