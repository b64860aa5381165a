/*
Package monitor implements the HTTP monitor state machine for Vigil.

A monitor cycles through confirmation-threshold states so that a single
flapped probe never pages a human:

	                  success                    success
	  ┌─────────┐   ┌──────────────► Up ◄──────────────────┐
	  │ Unknown ├───┤                │                      │
	  └─────────┘   │ failure        │ failure              │
	                ▼                ▼                      │
	          Suspicious ──────► Suspicious(n+1)            │
	                │  n+1 ≥ D        │ success             │
	                ▼                 └──────► Up           │
	              Down ◄──────────── failure                │
	                │ success                               │
	                ▼                                       │
	           Recovering ────► Recovering(n+1) ── n+1 ≥ R ─┘

D is the downtime confirmation threshold, R the recovery threshold; a
zero threshold commits on the first probe. Entering Down opens an
incident; returning to Up from Down or Recovering resolves it. Both
side effects happen in the same store transaction as the monitor
update, so observers never see a Down monitor without its incident.

The package follows the boundary-record pattern: State is a closed
interface with one concrete variant per status, Transition is a pure
function, and Monitor is the flat persistable projection. StateOf and
Apply convert between the two; round-tripping is covered by tests.
*/
package monitor
