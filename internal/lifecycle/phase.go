package lifecycle

import "fmt"

// Phase is the lifecycle phase of a controller
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseLoadFailed
	PhaseLoadTimedOut
	PhaseShowing
	PhaseHidden
)

var phaseNames = map[Phase]string{
	PhaseIdle:         "idle",
	PhaseLoading:      "loading",
	PhaseLoaded:       "loaded",
	PhaseLoadFailed:   "load_failed",
	PhaseLoadTimedOut: "load_timed_out",
	PhaseShowing:      "showing",
	PhaseHidden:       "hidden",
}

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
