package monitor

import (
	"fmt"
	"time"

	"github.com/cuemby/vigil/pkg/probe"
)

// State is the closed set of in-memory monitor states. Each status that
// carries a confirmation counter has its own variant; the others are
// zero-sized markers.
type State interface {
	Status() Status
	counter() int
}

// Unknown is a monitor that has never been probed
type Unknown struct{}

// Up is a confirmed-healthy monitor
type Up struct{}

// Suspicious is a monitor accumulating consecutive failures toward the
// downtime confirmation threshold.
type Suspicious struct {
	// Failures is the count of consecutive failed probes observed so far
	Failures int
}

// Down is a confirmed-down monitor
type Down struct{}

// Recovering is a down monitor accumulating consecutive successes toward
// the recovery confirmation threshold.
type Recovering struct {
	// Successes is the count of consecutive successful probes so far
	Successes int
}

// Inactive is a monitor paused by its operator
type Inactive struct{}

// Archived is a terminally retired monitor
type Archived struct{}

func (Unknown) Status() Status      { return StatusUnknown }
func (Up) Status() Status           { return StatusUp }
func (s Suspicious) Status() Status { return StatusSuspicious }
func (Down) Status() Status         { return StatusDown }
func (s Recovering) Status() Status { return StatusRecovering }
func (Inactive) Status() Status     { return StatusInactive }
func (Archived) Status() Status     { return StatusArchived }

func (Unknown) counter() int      { return 0 }
func (Up) counter() int           { return 0 }
func (s Suspicious) counter() int { return s.Failures }
func (Down) counter() int         { return 0 }
func (s Recovering) counter() int { return s.Successes }
func (Inactive) counter() int     { return 0 }
func (Archived) counter() int     { return 0 }

// Outcome is a classified probe result
type Outcome struct {
	Success   bool
	ErrorKind probe.ErrorKind
	HTTPCode  *int
}

// Classify turns a raw probe response into a success/failure outcome.
// A probe succeeds iff the request completed and the status code is in
// [200, 399]; a completed request with an out-of-range code is a failure
// of kind http_code_error.
func Classify(resp probe.Response) Outcome {
	if resp.ErrorKind != probe.ErrorKindNone && resp.ErrorKind != "" {
		return Outcome{Success: false, ErrorKind: resp.ErrorKind, HTTPCode: resp.HTTPCode}
	}
	if resp.HTTPCode != nil && *resp.HTTPCode >= 200 && *resp.HTTPCode <= 399 {
		return Outcome{Success: true, ErrorKind: probe.ErrorKindNone, HTTPCode: resp.HTTPCode}
	}
	return Outcome{Success: false, ErrorKind: probe.ErrorKindHTTPCodeError, HTTPCode: resp.HTTPCode}
}

// Effects are the incident side effects a transition demands. They must
// be applied in the same transaction as the monitor update.
type Effects struct {
	// StatusChanged is true when the status discriminator moved
	StatusChanged bool

	// OpenIncident is true when the monitor entered Down
	OpenIncident bool

	// ResolveIncident is true when the monitor returned to Up from
	// Down or Recovering
	ResolveIncident bool
}

// Transition applies one probe outcome to a state. D is the downtime
// confirmation threshold, R the recovery confirmation threshold; a zero
// threshold commits the corresponding change on the first probe.
//
// Inactive and Archived monitors are never selected for probing, so a
// transition on them is a bug in the selector.
func Transition(state State, outcome Outcome, d, r int) (State, Effects, error) {
	switch s := state.(type) {
	case Unknown:
		return fromOperational(outcome, d, false)
	case Up:
		return fromOperational(outcome, d, true)
	case Suspicious:
		if outcome.Success {
			return Up{}, Effects{StatusChanged: true}, nil
		}
		if s.Failures+1 >= d {
			return Down{}, Effects{StatusChanged: true, OpenIncident: true}, nil
		}
		return Suspicious{Failures: s.Failures + 1}, Effects{}, nil
	case Down:
		if !outcome.Success {
			return Down{}, Effects{}, nil
		}
		if r == 0 {
			return Up{}, Effects{StatusChanged: true, ResolveIncident: true}, nil
		}
		return Recovering{Successes: 1}, Effects{StatusChanged: true}, nil
	case Recovering:
		if !outcome.Success {
			return Down{}, Effects{StatusChanged: true}, nil
		}
		if s.Successes+1 >= r {
			return Up{}, Effects{StatusChanged: true, ResolveIncident: true}, nil
		}
		return Recovering{Successes: s.Successes + 1}, Effects{}, nil
	default:
		return state, Effects{}, fmt.Errorf("illegal probe transition from status %q", state.Status())
	}
}

// fromOperational handles the shared Unknown/Up probe handling. wasUp
// distinguishes the two: a successful probe keeps an Up monitor where
// it is but moves an Unknown one.
func fromOperational(outcome Outcome, d int, wasUp bool) (State, Effects, error) {
	if outcome.Success {
		return Up{}, Effects{StatusChanged: !wasUp}, nil
	}
	if d == 0 {
		return Down{}, Effects{StatusChanged: true, OpenIncident: true}, nil
	}
	return Suspicious{Failures: 1}, Effects{StatusChanged: true}, nil
}

// StateOf reconstructs the in-memory state from a boundary record
func StateOf(m *Monitor) (State, error) {
	switch m.Status {
	case StatusUnknown:
		return Unknown{}, nil
	case StatusUp:
		return Up{}, nil
	case StatusSuspicious:
		return Suspicious{Failures: m.StatusCounter}, nil
	case StatusDown:
		return Down{}, nil
	case StatusRecovering:
		return Recovering{Successes: m.StatusCounter}, nil
	case StatusInactive:
		return Inactive{}, nil
	case StatusArchived:
		return Archived{}, nil
	default:
		return nil, fmt.Errorf("unknown monitor status %q", m.Status)
	}
}

// Apply projects a transition result back onto the boundary record and
// advances the ping schedule. The transition that produced next must
// come from the same record's state.
func (m *Monitor) Apply(next State, effects Effects, outcome Outcome, now time.Time) {
	m.Status = next.Status()
	m.StatusCounter = next.counter()
	if effects.StatusChanged {
		m.LastStatusChangeAt = now
	}
	m.LastHTTPCode = outcome.HTTPCode
	m.ErrorKind = outcome.ErrorKind

	nextPing := now.Add(m.Interval)
	m.NextPingAt = &nextPing
}
