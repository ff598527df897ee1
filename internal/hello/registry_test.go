package hello

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestRegistry() *Registry {
	return NewRegistry(zerolog.Nop())
}

func TestNextSequenceCounts(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("dac-1", "192.168.1.50", 0, 0)
	for want := uint16(1); want <= 5; want++ {
		got, err := reg.NextSequence("dac-1")
		if err != nil {
			t.Fatalf("next sequence: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestNextSequenceWraps(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("dac-1", "192.168.1.50", 0, 0)
	var last uint16
	for i := 0; i < 65535; i++ {
		last, _ = reg.NextSequence("dac-1")
	}
	if last != 65535 {
		t.Fatalf("expected 65535 before wrap, got %d", last)
	}
	next, err := reg.NextSequence("dac-1")
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	if next != 0 {
		t.Fatalf("expected wrap to 0, got %d", next)
	}
}

func TestSequencesIndependentPerDevice(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("a", "10.0.0.1", 0, 0)
	reg.Register("b", "10.0.0.2", 0, 0)

	a1, _ := reg.NextSequence("a")
	b1, _ := reg.NextSequence("b")
	a2, _ := reg.NextSequence("a")
	b2, _ := reg.NextSequence("b")
	if a1 != 1 || a2 != 2 || b1 != 1 || b2 != 2 {
		t.Fatalf("counters not independent: a=%d,%d b=%d,%d", a1, a2, b1, b2)
	}
}

func TestNextSequenceConcurrent(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("dac-1", "10.0.0.1", 0, 0)

	const workers, perWorker = 8, 100
	var wg sync.WaitGroup
	seen := make([]map[uint16]bool, workers)
	for w := 0; w < workers; w++ {
		w := w
		seen[w] = map[uint16]bool{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				seq, err := reg.NextSequence("dac-1")
				if err != nil {
					t.Error(err)
					return
				}
				seen[w][seq] = true
			}
		}()
	}
	wg.Wait()

	all := map[uint16]bool{}
	for _, m := range seen {
		for seq := range m {
			if all[seq] {
				t.Fatalf("sequence %d issued twice", seq)
			}
			all[seq] = true
		}
	}
	if len(all) != workers*perWorker {
		t.Fatalf("expected %d distinct sequences, got %d", workers*perWorker, len(all))
	}
}

func TestResetSequence(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("dac-1", "10.0.0.1", 0, 0)
	reg.NextSequence("dac-1")
	reg.NextSequence("dac-1")
	if err := reg.ResetSequence("dac-1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	seq, _ := reg.NextSequence("dac-1")
	if seq != 1 {
		t.Fatalf("expected 1 after reset, got %d", seq)
	}
}

func TestRegisterKeepsSequence(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("dac-1", "10.0.0.1", 0, 0)
	reg.NextSequence("dac-1")
	reg.Register("dac-1", "10.0.0.99", 7255, 2)

	rec, ok := reg.Get("dac-1")
	if !ok || rec.Addr != "10.0.0.99" || rec.Port != 7255 {
		t.Fatalf("re-register did not refresh address: %+v", rec)
	}
	seq, _ := reg.NextSequence("dac-1")
	if seq != 2 {
		t.Fatalf("re-register reset the counter: got %d", seq)
	}
}

func TestUpdatePartial(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("dac-1", "10.0.0.1", 0, 0)

	status := StatusRealtime | StatusOccupied
	version := ProtocolVersion{Major: 1, Minor: 2}
	if err := reg.Update("dac-1", DeviceUpdate{Status: &status, Version: &version}); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, _ := reg.Get("dac-1")
	if rec.Status != status || rec.Version != version {
		t.Fatalf("update not applied: %+v", rec)
	}
	if rec.Addr != "10.0.0.1" {
		t.Fatalf("untouched field changed: %q", rec.Addr)
	}
}

func TestUnknownDeviceOperations(t *testing.T) {
	reg := newTestRegistry()
	if _, err := reg.NextSequence("ghost"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
	if err := reg.Update("ghost", DeviceUpdate{}); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
	if err := reg.ResetSequence("ghost"); !errors.Is(err, ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
	if reg.Unregister("ghost") {
		t.Fatal("unregister of unknown id reported success")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	reg := newTestRegistry()
	reg.Register("dac-1", "10.0.0.1", 0, 0)
	rec, _ := reg.Get("dac-1")
	rec.Addr = "changed"
	again, _ := reg.Get("dac-1")
	if again.Addr != "10.0.0.1" {
		t.Fatal("Get leaked a reference to registry state")
	}
}
