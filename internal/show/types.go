package show

import "time"

// Point is one sample of a laser frame. X and Y are normalized to [-1, 1],
// colors to [0, 1]. Points are plain values; nothing downstream mutates them.
type Point struct {
	X, Y    float64
	R, G, B float64
}

// Blanked reports whether the point carries no visible beam.
func (p Point) Blanked() bool {
	return p.R == 0 && p.G == 0 && p.B == 0
}

// Frame is one rendered animation frame as handed over by the effects
// pipeline: an ordered point list plus the scan duration in microseconds.
// Timestamp is optional (zero value means "stamp at send time").
type Frame struct {
	Points     []Point
	DurationUS uint32
	Timestamp  time.Time
}

// DestinationMode selects how a cue names its target.
type DestinationMode int

const (
	// DestNone routes to the default zone group.
	DestNone DestinationMode = iota
	// DestZoneGroup routes to every output in one zone group.
	DestZoneGroup
	// DestOutput routes to one specific output by id.
	DestOutput
)

// Destination is a cue's declared target before any routing effects run.
type Destination struct {
	Mode      DestinationMode
	ZoneGroup int
	OutputID  string
}

// RoutingOp is the operation a routing-modifier effect applies to the
// accumulated target.
type RoutingOp int

const (
	RouteReplace RoutingOp = iota
	RouteAdd
	RouteFilter
)

// RoutingMod is the routing payload of an effect tagged EffectRouting.
type RoutingMod struct {
	Op         RoutingOp
	ZoneGroups []int
	OutputIDs  []string
}

// EffectKind tags the two effect variants that share a cue's chain.
type EffectKind int

const (
	EffectVisual EffectKind = iota
	EffectRouting
)

// Effect is one entry of a cue's ordered chain. Visual effects are applied
// upstream of this package; only the routing variant matters here, carried
// in Routing when Kind == EffectRouting.
type Effect struct {
	Kind    EffectKind
	Name    string
	Enabled bool
	Routing *RoutingMod
}

// Cue couples a destination with an ordered effect chain. The animation
// source a cue triggers lives outside this core.
type Cue struct {
	Name        string
	Destination Destination
	Effects     []Effect
}

// OutputKind distinguishes physical projectors from virtual ones that share
// a physical device's calibration but carry their own geometry.
type OutputKind int

const (
	OutputPhysical OutputKind = iota
	OutputVirtual
)

// Corner is one geometry corner in normalized projection space.
type Corner struct {
	X, Y float64
}

// Geometry is the corner-pin quad of an output, ordered top-left, top-right,
// bottom-right, bottom-left.
type Geometry [4]Corner

// IdentityGeometry is the unit square, i.e. no corner-pin correction.
func IdentityGeometry() Geometry {
	return Geometry{
		{X: -1, Y: 1},
		{X: 1, Y: 1},
		{X: 1, Y: -1},
		{X: -1, Y: -1},
	}
}

// Output is a read-only snapshot of one configured projector. Routing takes
// these by value and never writes back.
type Output struct {
	Kind       OutputKind
	ID         string
	DeviceID   string
	Geometry   Geometry
	ZoneGroups []int
	Tags       []string
	Enabled    bool
}

// HasTag reports whether the output carries the given tag.
func (o Output) HasTag(tag string) bool {
	for _, t := range o.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
