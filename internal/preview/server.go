package preview

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
)

//go:embed viewer.html
var viewerHTML []byte

const (
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// OpenFunc handles an open-file request. An empty path cancels the current
// document.
type OpenFunc func(ctx context.Context, path string) error

// Status is the user-visible state of the viewer.
type Status struct {
	State   string    `json:"state"`
	Path    string    `json:"path,omitempty"`
	Name    string    `json:"name,omitempty"`
	Message string    `json:"message,omitempty"`
	OK      bool      `json:"ok"`
	Time    time.Time `json:"time"`
}

type message struct {
	Type     string  `json:"type"`
	Revision string  `json:"revision,omitempty"`
	HTML     string  `json:"html,omitempty"`
	Status   *Status `json:"status,omitempty"`
}

// Server holds the current page and status and serves them over HTTP. It
// implements display.Sink.
type Server struct {
	mu       sync.RWMutex
	content  string
	digest   uint64
	status   Status
	opener   OpenFunc
	hub      *hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithOpener sets the handler for POST /open.
func WithOpener(fn OpenFunc) Option {
	return func(s *Server) {
		s.opener = fn
	}
}

// NewServer creates a server with an empty page.
func NewServer(opts ...Option) *Server {
	s := &Server{
		digest: xxhash.Sum64String(""),
		status: Status{State: "idle", OK: true},
		hub:    newHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SetOpener replaces the handler for POST /open.
func (s *Server) SetOpener(fn OpenFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opener = fn
}

// SetContent replaces the page and notifies connected viewers.
func (s *Server) SetContent(html string) {
	s.mu.Lock()
	s.content = html
	s.digest = xxhash.Sum64String(html)
	m := s.contentMessageLocked()
	s.mu.Unlock()

	s.hub.publish(m)
}

// SetStatus replaces the status and notifies connected viewers.
func (s *Server) SetStatus(st Status) {
	if st.Time.IsZero() {
		st.Time = time.Now().UTC()
	}

	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	s.hub.publish(message{Type: "status", Status: &st})
}

// Content returns the current page.
func (s *Server) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.content
}

// Status returns the current status.
func (s *Server) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleViewer)
	mux.HandleFunc("GET /content", s.handleContent)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /open", s.handleOpen)

	return mux
}

// Serve listens on addr and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled. The listener is closed
// on return.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("preview server listening", slog.String("addr", "http://"+ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("serving preview: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down preview: %w", err)
	}

	return nil
}

func (s *Server) handleViewer(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(viewerHTML)
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	content, digest := s.content, s.digest
	s.mu.RUnlock()

	etag := strconv.Quote(revision(digest))

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	// Documents may carry raw HTML; never let them script the viewer origin.
	w.Header().Set("Content-Security-Policy", "sandbox")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(content))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.Status()); err != nil {
		s.logger.Debug("encoding status", slog.String("error", err.Error()))
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	opener := s.opener
	s.mu.RUnlock()

	if opener == nil {
		http.Error(w, "opening documents is not supported", http.StatusNotImplemented)
		return
	}

	if !sameOrigin(r) {
		s.logger.Warn("rejected cross-origin open request",
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("fetchSite", r.Header.Get("Sec-Fetch-Site")),
		)
		http.Error(w, "cross-origin requests are not allowed", http.StatusForbidden)

		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := opener(r.Context(), r.PostForm.Get("path")); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	output, cancel := s.hub.subscribe()
	defer func() {
		s.logger.Debug("viewer disconnected",
			slog.String("remote", r.RemoteAddr),
			slog.Int64("dropped", cancel()),
		)
	}()

	s.mu.RLock()
	snapshot := []message{s.contentMessageLocked(), s.statusMessageLocked()}
	s.mu.RUnlock()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for _, m := range snapshot {
			if err := writeMessage(conn, m); err != nil {
				return
			}
		}

		for {
			select {
			case m := <-output:
				if err := writeMessage(conn, m); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// sameOrigin reports whether r was sent by the viewer page itself or by a
// non-browser client. Browsers set Sec-Fetch-Site and Origin on POSTs.
func sameOrigin(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "", "same-origin", "none":
	default:
		return false
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) contentMessageLocked() message {
	return message{Type: "content", Revision: revision(s.digest), HTML: s.content}
}

func (s *Server) statusMessageLocked() message {
	st := s.status
	return message{Type: "status", Status: &st}
}

func writeMessage(conn *websocket.Conn, m message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return conn.WriteJSON(m)
}

func revision(digest uint64) string {
	return fmt.Sprintf("%016x", digest)
}
