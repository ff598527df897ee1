package routing

import (
	"fmt"

	"github.com/zbear0808/laser-idn-project-sub009/internal/show"
)

// SafetyTag marks outputs pointed at audience areas or other places where
// surprise routing deserves a warning.
const SafetyTag = "safety"

// Explanation pairs a match verdict with a human-readable reason, for the
// routing-preview tooling.
type Explanation struct {
	OutputID string `json:"output_id"`
	Match    bool   `json:"match"`
	Reason   string `json:"reason"`
}

// Explain evaluates one candidate output against a target and says why it
// matched or did not. Match uses the same logic, so the preview never
// disagrees with the real resolution.
func Explain(o show.Output, target TargetSpec) Explanation {
	ex := Explanation{OutputID: o.ID}
	if !o.Enabled {
		ex.Reason = "output disabled"
		return ex
	}
	if len(target.OutputIDs) > 0 {
		if containsString(target.OutputIDs, o.ID) {
			ex.Match = true
			ex.Reason = "selected directly by id"
		} else {
			ex.Reason = "not in the target's id set"
		}
		return ex
	}
	if len(target.ZoneGroups) == 0 {
		ex.Reason = "target selects nothing"
		return ex
	}
	for _, g := range target.ZoneGroups {
		if containsInt(o.ZoneGroups, g) {
			ex.Match = true
			ex.Reason = fmt.Sprintf("member of zone group %d", g)
			return ex
		}
	}
	ex.Reason = "no zone group in common with target"
	return ex
}

// ExplainAll evaluates every candidate output, matched or not.
func ExplainAll(target TargetSpec, outputs []show.Output) []Explanation {
	out := make([]Explanation, 0, len(outputs))
	for _, o := range outputs {
		out = append(out, Explain(o, target))
	}
	return out
}

// SafetyWarnings inspects a resolution result for the two conditions worth
// surfacing to an operator: a cue that lights up a safety-tagged output,
// and a cue that resolved to nothing while safety-tagged outputs exist in
// the configuration. Empty results stay valid either way; the caller
// decides whether to warn.
func SafetyWarnings(resolved, all []show.Output) []string {
	var warnings []string
	for _, o := range resolved {
		if o.HasTag(SafetyTag) {
			warnings = append(warnings, fmt.Sprintf("cue resolves onto safety-tagged output %q", o.ID))
		}
	}
	if len(resolved) == 0 {
		for _, o := range all {
			if o.Enabled && o.HasTag(SafetyTag) {
				warnings = append(warnings, "cue resolves to no outputs in a configuration with safety-tagged outputs")
				break
			}
		}
	}
	return warnings
}
