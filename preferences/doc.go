// Package preferences holds the per-user notification preferences model and
// the pure gate that decides whether an incoming record may surface locally.
//
// The gate is deliberately side-effect free and takes the evaluation time as
// a parameter, so quiet-hours behavior can be tested without mocking any
// other component. Server-side delivery decisions (which channel actually
// carries a notification) are out of scope here; the gate only governs local
// in-app surfacing.
package preferences
