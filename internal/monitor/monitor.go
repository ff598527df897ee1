// Package monitor exposes read-only inspection endpoints over websockets:
// routing previews for the active cue and decoded headers of the channel
// messages going out on the wire. It is a window for tooling, not a
// control surface.
package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zbear0808/laser-idn-project-sub009/internal/routing"
	"github.com/zbear0808/laser-idn-project-sub009/internal/show"
	"github.com/zbear0808/laser-idn-project-sub009/internal/stream"
)

// Monitor broadcasts inspection events to connected clients.
type Monitor struct {
	mu          sync.Mutex
	previewers  map[*websocket.Conn]bool
	inspectors  map[*websocket.Conn]bool
	cue         func() show.Cue
	outputs     func() []show.Output
	log         zerolog.Logger
	previewTick time.Duration
}

// New builds a monitor over the same cue/output getters the streamer uses.
func New(cue func() show.Cue, outputs func() []show.Output, log zerolog.Logger) *Monitor {
	return &Monitor{
		previewers:  map[*websocket.Conn]bool{},
		inspectors:  map[*websocket.Conn]bool{},
		cue:         cue,
		outputs:     outputs,
		log:         log,
		previewTick: time.Second,
	}
}

type previewMessage struct {
	Type     string                `json:"type"`
	Cue      string                `json:"cue"`
	Explain  []routing.Explanation `json:"explain"`
	Warnings []string              `json:"warnings,omitempty"`
}

type packetMessage struct {
	Type      string               `json:"type"`
	DeviceID  string               `json:"device_id"`
	Header    stream.MessageHeader `json:"header"`
	Valid     bool                 `json:"valid"`
	Reason    string               `json:"reason,omitempty"`
	SizeBytes int                  `json:"size_bytes"`
}

// HandleRoutingWS streams a routing preview for the active cue once per
// second until the client goes away.
func (m *Monitor) HandleRoutingWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrade(w, r)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.previewers[conn] = true
	m.mu.Unlock()

	go m.drain(conn, m.previewers)
	go func() {
		ticker := time.NewTicker(m.previewTick)
		defer ticker.Stop()
		for range ticker.C {
			msg := m.preview()
			m.mu.Lock()
			alive := m.previewers[conn]
			var err error
			if alive {
				err = conn.WriteJSON(msg)
			}
			m.mu.Unlock()
			if !alive {
				return
			}
			if err != nil {
				m.remove(conn, m.previewers)
				return
			}
		}
	}()
}

// HandlePacketsWS subscribes a client to decoded outbound packet headers.
func (m *Monitor) HandlePacketsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrade(w, r)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.inspectors[conn] = true
	m.mu.Unlock()
	go m.drain(conn, m.inspectors)
}

// HandleHealth is a plain liveness endpoint.
func (m *Monitor) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

// ObservePacket decodes and validates one outbound channel message and
// fans the result out to inspector clients. Wired as the streamer's
// Observer hook.
func (m *Monitor) ObservePacket(deviceID string, msg []byte) {
	m.mu.Lock()
	n := len(m.inspectors)
	m.mu.Unlock()
	if n == 0 {
		return
	}

	hdr, err := stream.DecodeHeader(msg)
	res := stream.Validate(msg)
	pm := packetMessage{
		Type:      "packet",
		DeviceID:  deviceID,
		Valid:     res.OK,
		Reason:    res.Reason,
		SizeBytes: len(msg),
	}
	if err == nil {
		pm.Header = hdr
	}
	m.broadcast(m.inspectors, pm)
}

func (m *Monitor) preview() previewMessage {
	cue := m.cue()
	outputs := m.outputs()
	target := routing.FoldEffects(routing.ToTarget(cue.Destination), cue.Effects)
	resolved := routing.Match(target, outputs)
	return previewMessage{
		Type:     "routing",
		Cue:      cue.Name,
		Explain:  routing.ExplainAll(target, outputs),
		Warnings: routing.SafetyWarnings(resolved, outputs),
	}
}

func (m *Monitor) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		m.log.Debug().Err(err).Msg("websocket upgrade failed")
	}
	return conn, err
}

// broadcast writes under m.mu: websocket connections allow one writer at
// a time, and ObservePacket runs concurrently from every device loop.
func (m *Monitor) broadcast(set map[*websocket.Conn]bool, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var failed []*websocket.Conn
	for c := range set {
		if err := c.WriteJSON(v); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		delete(set, c)
		_ = c.Close()
	}
}

func (m *Monitor) drain(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	defer m.remove(conn, set)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (m *Monitor) remove(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	m.mu.Lock()
	if set[conn] {
		delete(set, conn)
		_ = conn.Close()
	}
	m.mu.Unlock()
}
