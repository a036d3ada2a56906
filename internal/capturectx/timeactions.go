package capturectx

import "sort"

// TimeActions is the host-side mirror of the in-page sparse map
// `{t_ms -> fn(page)}` spec.md §4.3 names. The page owns the real
// callbacks; this type exists so the resolution policy (which key fires
// on a given tick) can be asserted in tests independent of a browser.
type TimeActions struct {
	policy  TimeActionPolicy
	pending map[float64]bool // presence set; payload lives page-side
}

// NewTimeActions constructs an empty set under the given policy.
func NewTimeActions(policy TimeActionPolicy) *TimeActions {
	return &TimeActions{policy: policy, pending: make(map[float64]bool)}
}

// Add registers a pending action at key t.
func (ta *TimeActions) Add(t float64) {
	ta.pending[t] = true
}

// Resolve returns the keys that fire for the given currentTime, removing
// them from the pending set, per TimeActionPolicy:
//   - TimeActionSmallestElapsed: at most one key, the smallest <= t.
//   - TimeActionAllElapsed: every key <= t, ascending.
func (ta *TimeActions) Resolve(currentTime float64) []float64 {
	var elapsed []float64
	for k := range ta.pending {
		if k <= currentTime {
			elapsed = append(elapsed, k)
		}
	}
	sort.Float64s(elapsed)

	if len(elapsed) == 0 {
		return nil
	}
	if ta.policy == TimeActionSmallestElapsed {
		elapsed = elapsed[:1]
	}
	for _, k := range elapsed {
		delete(ta.pending, k)
	}
	return elapsed
}

// Len reports the number of still-pending actions.
func (ta *TimeActions) Len() int {
	return len(ta.pending)
}
