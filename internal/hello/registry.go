package hello

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// StatusFlags are the capability/health bits a unit reports in its scan
// response.
type StatusFlags uint8

const (
	StatusRealtime    StatusFlags = 0x01
	StatusOccupied    StatusFlags = 0x10
	StatusExcluded    StatusFlags = 0x20
	StatusOffline     StatusFlags = 0x40
	StatusMalfunction StatusFlags = 0x80
)

// ProtocolVersion is the major.minor pair packed into one scan-response byte.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// DeviceRecord is a snapshot of one registered device. The registry hands
// out copies only; the live record, sequence counter included, never leaves
// the registry.
type DeviceRecord struct {
	ID          string
	Addr        string
	Port        int
	ClientGroup uint8
	LastSeen    time.Time
	Status      StatusFlags
	Version     ProtocolVersion
}

// DeviceUpdate is a partial update; nil fields are left untouched.
type DeviceUpdate struct {
	Addr        *string
	Port        *int
	ClientGroup *uint8
	Status      *StatusFlags
	Version     *ProtocolVersion
	LastSeen    *time.Time
}

// ErrUnknownDevice is returned for operations on an unregistered id.
var ErrUnknownDevice = errors.New("hello: unknown device")

type deviceEntry struct {
	mu  sync.Mutex // guards rec
	rec DeviceRecord
	seq atomic.Uint32 // low 16 bits are the wire sequence
}

// Registry owns all per-device session state. The map is guarded by one
// RWMutex; each device carries its own sequence counter, so sends to
// different devices never contend.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*deviceEntry
	log     zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		devices: map[string]*deviceEntry{},
		log:     log,
	}
}

// Register adds a device or, if the id exists, refreshes its address. The
// sequence counter of an existing device is kept; counters reset only via
// ResetSequence.
func (r *Registry) Register(id, addr string, port int, clientGroup uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.devices[id]; ok {
		e.mu.Lock()
		e.rec.Addr = addr
		e.rec.Port = port
		e.rec.ClientGroup = clientGroup & clientGroupMask
		e.mu.Unlock()
		r.log.Debug().Str("device", id).Str("addr", addr).Msg("device re-registered")
		return
	}
	e := &deviceEntry{rec: DeviceRecord{
		ID:          id,
		Addr:        addr,
		Port:        port,
		ClientGroup: clientGroup & clientGroupMask,
	}}
	r.devices[id] = e
	r.log.Info().Str("device", id).Str("addr", addr).Int("port", port).Msg("device registered")
}

// Unregister removes a device; it reports whether the id was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[id]; !ok {
		return false
	}
	delete(r.devices, id)
	r.log.Info().Str("device", id).Msg("device unregistered")
	return true
}

// Update applies the non-nil fields of u to the device record.
func (r *Registry) Update(id string, u DeviceUpdate) error {
	e, ok := r.entry(id)
	if !ok {
		return fmt.Errorf("update %q: %w", id, ErrUnknownDevice)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if u.Addr != nil {
		e.rec.Addr = *u.Addr
	}
	if u.Port != nil {
		e.rec.Port = *u.Port
	}
	if u.ClientGroup != nil {
		e.rec.ClientGroup = *u.ClientGroup & clientGroupMask
	}
	if u.Status != nil {
		e.rec.Status = *u.Status
	}
	if u.Version != nil {
		e.rec.Version = *u.Version
	}
	if u.LastSeen != nil {
		e.rec.LastSeen = *u.LastSeen
	}
	return nil
}

// NextSequence advances the device's private counter and returns the new
// value. Counters start at zero, so a fresh device yields 1, and wrap from
// 65535 back to 0. Each device advances independently.
func (r *Registry) NextSequence(id string) (uint16, error) {
	e, ok := r.entry(id)
	if !ok {
		return 0, fmt.Errorf("next sequence %q: %w", id, ErrUnknownDevice)
	}
	return uint16(e.seq.Add(1) & 0xFFFF), nil
}

// ResetSequence sets the device's counter back to zero.
func (r *Registry) ResetSequence(id string) error {
	e, ok := r.entry(id)
	if !ok {
		return fmt.Errorf("reset sequence %q: %w", id, ErrUnknownDevice)
	}
	e.seq.Store(0)
	return nil
}

// Get returns a copy of the device record.
func (r *Registry) Get(id string) (DeviceRecord, bool) {
	e, ok := r.entry(id)
	if !ok {
		return DeviceRecord{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, true
}

// List returns copies of all device records.
func (r *Registry) List() []DeviceRecord {
	r.mu.RLock()
	entries := make([]*deviceEntry, 0, len(r.devices))
	for _, e := range r.devices {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	recs := make([]DeviceRecord, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		recs = append(recs, e.rec)
		e.mu.Unlock()
	}
	return recs
}

func (r *Registry) entry(id string) (*deviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.devices[id]
	return e, ok
}
