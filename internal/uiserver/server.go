// Package uiserver implements spec section 6.6's menu-bar/UI contract
// over a localhost websocket: it streams session_state, audio_level,
// and error observables out, and accepts start_recording/stop_recording/
// cancel/reload_config commands in. The core never calls UI code
// directly (spec section 5: "the core only signals the UI ... via a
// message channel").
//
// The gorilla/websocket dependency is repurposed from the teacher's
// internal/transcription/assemblyai.go cloud-transcription transport:
// there it dialed an outbound AssemblyAI stream, here it serves an
// inbound local UI connection over the same message framing, read and
// written here as JSON (ReadJSON/WriteJSON). No ping/pong liveness check
// is run; a client is dropped when a read or write on it fails.
package uiserver

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluidvoice/fluidvoice/internal/logging"
	"github.com/fluidvoice/fluidvoice/internal/session"
)

// CommandTarget is the subset of SessionController the UI drives.
type CommandTarget interface {
	Submit(kind string)
}

// ConfigReloader is invoked for the reload_config command.
type ConfigReloader interface {
	Reload() error
}

// LevelSource reports the live capture level, polled at up to 60Hz per
// spec section 6.6.
type LevelSource interface {
	Level() float32
}

type envelope struct {
	Type    string  `json:"type"`
	State   string  `json:"state,omitempty"`
	Level   float64 `json:"level,omitempty"`
	Kind    string  `json:"kind,omitempty"`
	Message string  `json:"message,omitempty"`
}

type command struct {
	Type string `json:"type"`
}

// Server is the localhost websocket endpoint the UI connects to.
type Server struct {
	log         *logging.Logger
	controller  CommandTarget
	configMgr   ConfigReloader
	levelSource LevelSource

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	httpSrv *http.Server
}

// New builds a Server bound to addr (e.g. "127.0.0.1:47212").
func New(addr string, controller CommandTarget, configMgr ConfigReloader, levelSource LevelSource) *Server {
	s := &Server{
		log:         logging.New("uiserver"),
		controller:  controller,
		configMgr:   configMgr,
		levelSource: levelSource,
		clients:     make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			// The UI is a local, same-machine process; origin checks
			// protect against a remote page driving the socket. Requests
			// without an Origin header (non-browser clients) are accepted.
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				host := u.Hostname()
				return host == "localhost" || host == "127.0.0.1" || host == "::1"
			},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// OnStateChange and OnError broadcast session state and error changes to
// every connected client; the Daemon's session.Observer forwards each
// transition here as it happens.
func (s *Server) OnStateChange(st session.State) {
	s.broadcast(envelope{Type: "session_state", State: string(st)})
}

func (s *Server) OnError(kind string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.broadcast(envelope{Type: "error", Kind: kind, Message: msg})
}

// Start begins serving and the level-polling loop. It returns
// immediately; Stop shuts the HTTP server down, and the polling loop
// ends when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("websocket server stopped: %v", err)
		}
	}()
	go s.pollLevel(ctx)
}

func (s *Server) pollLevel(ctx context.Context) {
	ticker := time.NewTicker(time.Second / 30) // 30Hz, within the <=60Hz budget
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.levelSource == nil {
				continue
			}
			s.broadcast(envelope{Type: "audio_level", Level: float64(s.levelSource.Level())})
		}
	}
}

func (s *Server) Stop() error {
	s.mu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.mu.Unlock()
	return s.httpSrv.Close()
}

func (s *Server) broadcast(env envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		if err := c.WriteJSON(env); err != nil {
			c.Close()
			delete(s.clients, c)
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("websocket upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warnf("websocket read error: %v", err)
			}
			return
		}
		s.handleCommand(cmd)
	}
}

func (s *Server) handleCommand(cmd command) {
	switch cmd.Type {
	case "start_recording":
		s.controller.Submit("start")
	case "stop_recording":
		s.controller.Submit("stop")
	case "cancel":
		s.controller.Submit("cancel")
	case "reload_config":
		if s.configMgr != nil {
			if err := s.configMgr.Reload(); err != nil {
				s.log.Warnf("reload_config failed: %v", err)
			}
		}
	default:
		s.log.Warnf("unknown UI command: %q", cmd.Type)
	}
}
