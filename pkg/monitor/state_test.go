package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/vigil/pkg/probe"
)

func intPtr(n int) *int { return &n }

// TestClassify tests probe outcome classification
func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		resp        probe.Response
		wantSuccess bool
		wantKind    probe.ErrorKind
	}{
		{
			name:        "200 is success",
			resp:        probe.Response{ErrorKind: probe.ErrorKindNone, HTTPCode: intPtr(200)},
			wantSuccess: true,
			wantKind:    probe.ErrorKindNone,
		},
		{
			name:        "399 is success",
			resp:        probe.Response{ErrorKind: probe.ErrorKindNone, HTTPCode: intPtr(399)},
			wantSuccess: true,
			wantKind:    probe.ErrorKindNone,
		},
		{
			name:        "500 derives http code error",
			resp:        probe.Response{ErrorKind: probe.ErrorKindNone, HTTPCode: intPtr(500)},
			wantSuccess: false,
			wantKind:    probe.ErrorKindHTTPCodeError,
		},
		{
			name:        "199 derives http code error",
			resp:        probe.Response{ErrorKind: probe.ErrorKindNone, HTTPCode: intPtr(199)},
			wantSuccess: false,
			wantKind:    probe.ErrorKindHTTPCodeError,
		},
		{
			name:        "missing code is a failure",
			resp:        probe.Response{ErrorKind: probe.ErrorKindNone},
			wantSuccess: false,
			wantKind:    probe.ErrorKindHTTPCodeError,
		},
		{
			name:        "timeout wins over code",
			resp:        probe.Response{ErrorKind: probe.ErrorKindTimeout, HTTPCode: intPtr(200)},
			wantSuccess: false,
			wantKind:    probe.ErrorKindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := Classify(tt.resp)
			assert.Equal(t, tt.wantSuccess, outcome.Success)
			assert.Equal(t, tt.wantKind, outcome.ErrorKind)
		})
	}
}

// TestTransitionTable exercises the full transition table
func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name        string
		state       State
		success     bool
		d, r        int
		wantState   State
		wantEffects Effects
	}{
		{"unknown success", Unknown{}, true, 3, 2, Up{}, Effects{StatusChanged: true}},
		{"unknown failure", Unknown{}, false, 3, 2, Suspicious{Failures: 1}, Effects{StatusChanged: true}},
		{"unknown failure zero threshold", Unknown{}, false, 0, 2, Down{}, Effects{StatusChanged: true, OpenIncident: true}},
		{"up success", Up{}, true, 3, 2, Up{}, Effects{}},
		{"up failure", Up{}, false, 3, 2, Suspicious{Failures: 1}, Effects{StatusChanged: true}},
		{"up failure zero threshold", Up{}, false, 0, 2, Down{}, Effects{StatusChanged: true, OpenIncident: true}},
		{"suspicious success", Suspicious{Failures: 2}, true, 3, 2, Up{}, Effects{StatusChanged: true}},
		{"suspicious below threshold", Suspicious{Failures: 1}, false, 3, 2, Suspicious{Failures: 2}, Effects{}},
		{"suspicious reaches threshold", Suspicious{Failures: 2}, false, 3, 2, Down{}, Effects{StatusChanged: true, OpenIncident: true}},
		{"down failure", Down{}, false, 3, 2, Down{}, Effects{}},
		{"down success", Down{}, true, 3, 2, Recovering{Successes: 1}, Effects{StatusChanged: true}},
		{"down success zero threshold", Down{}, true, 3, 0, Up{}, Effects{StatusChanged: true, ResolveIncident: true}},
		{"recovering failure", Recovering{Successes: 1}, false, 3, 2, Down{}, Effects{StatusChanged: true}},
		{"recovering below threshold", Recovering{Successes: 1}, true, 3, 3, Recovering{Successes: 2}, Effects{}},
		{"recovering reaches threshold", Recovering{Successes: 1}, true, 3, 2, Up{}, Effects{StatusChanged: true, ResolveIncident: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, effects, err := Transition(tt.state, Outcome{Success: tt.success}, tt.d, tt.r)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, next)
			assert.Equal(t, tt.wantEffects, effects)
		})
	}
}

// TestTransitionIllegalStates verifies inactive and archived monitors
// reject probe transitions.
func TestTransitionIllegalStates(t *testing.T) {
	for _, state := range []State{Inactive{}, Archived{}} {
		_, _, err := Transition(state, Outcome{Success: true}, 3, 2)
		assert.Error(t, err)
	}
}

// TestFlapIsAbsorbed runs the canonical flap scenario: D=3, R=2 with
// probe sequence F, S, F, F, F, S, S.
func TestFlapIsAbsorbed(t *testing.T) {
	const d, r = 3, 2

	probes := []bool{false, true, false, false, false, true, true}
	wantStatuses := []Status{
		StatusSuspicious,
		StatusUp,
		StatusSuspicious,
		StatusSuspicious,
		StatusDown,
		StatusRecovering,
		StatusUp,
	}

	var opened, resolved int
	state := State(Up{})
	for i, success := range probes {
		next, effects, err := Transition(state, Outcome{Success: success}, d, r)
		require.NoError(t, err)
		assert.Equal(t, wantStatuses[i], next.Status(), "probe %d", i+1)
		if effects.OpenIncident {
			opened++
		}
		if effects.ResolveIncident {
			resolved++
		}
		state = next
	}

	assert.Equal(t, 1, opened, "exactly one incident opened")
	assert.Equal(t, 1, resolved, "exactly one incident resolved")
}

// TestStateBoundaryRoundTrip verifies state <-> boundary projection
func TestStateBoundaryRoundTrip(t *testing.T) {
	states := []State{
		Unknown{},
		Up{},
		Suspicious{Failures: 2},
		Down{},
		Recovering{Successes: 1},
		Inactive{},
		Archived{},
	}

	for _, want := range states {
		m := &Monitor{Status: want.Status(), StatusCounter: want.counter()}
		got, err := StateOf(m)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := StateOf(&Monitor{Status: "nonsense"})
	assert.Error(t, err)
}

// TestHealthyProbeKeepsStatusChangeTime verifies a successful probe on
// an Up monitor leaves last_status_change_at alone: only a real status
// move rewrites it.
func TestHealthyProbeKeepsStatusChangeTime(t *testing.T) {
	changed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	now := changed.Add(time.Hour)
	m := &Monitor{Status: StatusUp, LastStatusChangeAt: changed, Interval: time.Minute}

	next, effects, err := Transition(Up{}, Outcome{Success: true}, 3, 2)
	require.NoError(t, err)
	assert.False(t, effects.StatusChanged)

	m.Apply(next, effects, Outcome{Success: true}, now)
	assert.Equal(t, StatusUp, m.Status)
	assert.Equal(t, changed, m.LastStatusChangeAt)
	require.NotNil(t, m.NextPingAt)
	assert.Equal(t, now.Add(time.Minute), *m.NextPingAt)
}

// TestApplyAdvancesSchedule verifies ping scheduling and counter reset
func TestApplyAdvancesSchedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &Monitor{
		Status:        StatusSuspicious,
		StatusCounter: 2,
		Interval:      30 * time.Second,
	}

	next, effects, err := Transition(Suspicious{Failures: 2}, Outcome{Success: false, ErrorKind: probe.ErrorKindTimeout}, 3, 2)
	require.NoError(t, err)

	m.Apply(next, effects, Outcome{Success: false, ErrorKind: probe.ErrorKindTimeout}, now)

	assert.Equal(t, StatusDown, m.Status)
	assert.Equal(t, 0, m.StatusCounter, "counter resets on transition")
	assert.Equal(t, now, m.LastStatusChangeAt)
	require.NotNil(t, m.NextPingAt)
	assert.Equal(t, now.Add(30*time.Second), *m.NextPingAt)
	assert.Equal(t, probe.ErrorKindTimeout, m.ErrorKind)
}

// TestArchiveClearsSchedule covers the status/next-ping invariant
func TestArchiveClearsSchedule(t *testing.T) {
	now := time.Now()
	ping := now.Add(time.Minute)
	m := &Monitor{Status: StatusDown, NextPingAt: &ping}

	m.Archive(now)

	assert.Equal(t, StatusArchived, m.Status)
	assert.Nil(t, m.NextPingAt)
	assert.False(t, m.Active())

	m2 := &Monitor{Status: StatusUp, NextPingAt: &ping}
	m2.Pause(now)
	assert.Equal(t, StatusInactive, m2.Status)
	assert.Nil(t, m2.NextPingAt)

	m2.Resume(now)
	assert.Equal(t, StatusUnknown, m2.Status)
	require.NotNil(t, m2.NextPingAt)
	assert.True(t, m2.Active())
}
