// Package registry wires the external collaborators (database, probers,
// notification channels, file store) into one bundle handed to the
// worker supervisor. Workers receive interfaces only, so tests swap in
// fakes without touching the wiring.
package registry
