package routing

import (
	"github.com/zbear0808/laser-idn-project-sub009/internal/show"
)

// DefaultZoneGroup is where cues without a destination land.
const DefaultZoneGroup = 1

// TargetMode says how a target selects outputs.
type TargetMode int

const (
	// TargetZoneGroups selects outputs by zone-group membership.
	TargetZoneGroups TargetMode = iota
	// TargetDirect selects outputs by exact id, bypassing zone groups.
	TargetDirect
)

// TargetSpec is the computation intermediate between a cue's destination
// and the matched output set. It is never persisted.
type TargetSpec struct {
	Mode          TargetMode
	ZoneGroups    []int
	OutputIDs     []string
	PreferredKind show.OutputKind
}

// ToTarget converts a declared destination into a target. An absent
// destination routes to the default zone group.
func ToTarget(d show.Destination) TargetSpec {
	switch d.Mode {
	case show.DestZoneGroup:
		return TargetSpec{Mode: TargetZoneGroups, ZoneGroups: []int{d.ZoneGroup}}
	case show.DestOutput:
		return TargetSpec{Mode: TargetDirect, OutputIDs: []string{d.OutputID}}
	default:
		return TargetSpec{Mode: TargetZoneGroups, ZoneGroups: []int{DefaultZoneGroup}}
	}
}

// FoldEffects applies the routing-modifier effects of a chain, in original
// order, over a base target. Visual effects and disabled effects are
// skipped.
func FoldEffects(target TargetSpec, effects []show.Effect) TargetSpec {
	for _, e := range effects {
		if e.Kind != show.EffectRouting || !e.Enabled || e.Routing == nil {
			continue
		}
		mod := e.Routing
		switch mod.Op {
		case show.RouteReplace:
			target = TargetSpec{
				ZoneGroups: append([]int(nil), mod.ZoneGroups...),
				OutputIDs:  append([]string(nil), mod.OutputIDs...),
			}
		case show.RouteAdd:
			target.ZoneGroups = unionInts(target.ZoneGroups, mod.ZoneGroups)
			target.OutputIDs = unionStrings(target.OutputIDs, mod.OutputIDs)
		case show.RouteFilter:
			if len(mod.ZoneGroups) > 0 {
				target.ZoneGroups = intersectInts(target.ZoneGroups, mod.ZoneGroups)
			}
			if len(mod.OutputIDs) > 0 {
				target.OutputIDs = intersectStrings(target.OutputIDs, mod.OutputIDs)
			}
		}
		if len(target.OutputIDs) > 0 {
			target.Mode = TargetDirect
		} else {
			target.Mode = TargetZoneGroups
		}
	}
	return target
}

// Match filters outputs against a target. Disabled outputs never match.
// Direct output ids take precedence over zone-group logic; a target with
// neither ids nor groups matches nothing, which is a valid outcome.
func Match(target TargetSpec, outputs []show.Output) []show.Output {
	var matched []show.Output
	for _, o := range outputs {
		if Explain(o, target).Match {
			matched = append(matched, o)
		}
	}
	return matched
}

// Resolve computes the concrete output set for one cue.
func Resolve(cue show.Cue, outputs []show.Output) []show.Output {
	return Match(FoldEffects(ToTarget(cue.Destination), cue.Effects), outputs)
}

// ResolveGroups matches several zone groups at once, deduplicated by
// output id.
func ResolveGroups(groups []int, outputs []show.Output) []show.Output {
	var matched []show.Output
	seen := map[string]bool{}
	for _, g := range groups {
		target := TargetSpec{Mode: TargetZoneGroups, ZoneGroups: []int{g}}
		for _, o := range Match(target, outputs) {
			if seen[o.ID] {
				continue
			}
			seen[o.ID] = true
			matched = append(matched, o)
		}
	}
	return matched
}

func unionInts(a, b []int) []int {
	out := append([]int(nil), a...)
	for _, v := range b {
		if !containsInt(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func unionStrings(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, v := range b {
		if !containsString(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func intersectInts(a, b []int) []int {
	var out []int
	for _, v := range a {
		if containsInt(b, v) {
			out = append(out, v)
		}
	}
	return out
}

func intersectStrings(a, b []string) []string {
	var out []string
	for _, v := range a {
		if containsString(b, v) {
			out = append(out, v)
		}
	}
	return out
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsString(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
