// Package lifecycle orchestrates incident operations over an open
// store transaction: opening with its notification fan-out, resolving
// with notification cancellation, acknowledgement, confirmation and
// comments. The monitor executor and the task collectors share these
// entry points so the one-live-incident-per-source invariant is
// enforced in exactly one place, under the source row lock.
package lifecycle
