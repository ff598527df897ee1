package monitor

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zbear0808/laser-idn-project-sub009/internal/show"
	"github.com/zbear0808/laser-idn-project-sub009/internal/stream"
)

func newTestMonitor() *Monitor {
	return New(
		func() show.Cue { return show.Cue{Name: "test"} },
		func() []show.Output { return nil },
		zerolog.Nop(),
	)
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (m *Monitor) waitForInspector(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.Lock()
		n := len(m.inspectors)
		m.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("inspector client never registered")
}

// Every device send loop calls ObservePacket on its own goroutine; the
// fan-out must serialize its writes so one connection never sees two
// writers at once.
func TestObservePacketConcurrentSenders(t *testing.T) {
	mon := newTestMonitor()
	srv := httptest.NewServer(http.HandlerFunc(mon.HandlePacketsWS))
	defer srv.Close()
	conn := dialWS(t, srv)
	mon.waitForInspector(t)

	msg, err := stream.EncodeMessage(show.Frame{
		Points:     []show.Point{{X: 0.5, R: 1}},
		DurationUS: 20000,
	}, 0, 0, 20000, stream.ProfileDefault, stream.EncodeOptions{IncludeConfig: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	const senders, perSender = 2, 200
	var received atomic.Int32
	go func() {
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(device string) {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				mon.ObservePacket(device, msg)
			}
		}(fmt.Sprintf("dac-%d", i))
	}
	wg.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if received.Load() == senders*perSender {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d packets, got %d", senders*perSender, received.Load())
}

func TestBroadcastDropsDeadClients(t *testing.T) {
	mon := newTestMonitor()
	srv := httptest.NewServer(http.HandlerFunc(mon.HandlePacketsWS))
	defer srv.Close()
	conn := dialWS(t, srv)
	mon.waitForInspector(t)
	conn.Close()

	// Writes to the closed connection fail; the client must be evicted
	// rather than wedging later broadcasts.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mon.ObservePacket("dac-1", []byte{0x00})
		mon.mu.Lock()
		n := len(mon.inspectors)
		mon.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("dead client never evicted")
}
