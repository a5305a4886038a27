// Package module implements the container's lifecycle manager.
//
// The Manager drives the deploy, undeploy, redeploy and kill state
// machines over a registry of per-module actors. Every module-addressed
// operation returns a Future immediately; state flips and notifications
// run inside the module's actor while box I/O runs in goroutines that
// submit bookkeeping follow-ups. Redeploy composes the two halves as
// awaited sub-operations, each bounded by OpTimeout, and reports a
// stage timeout distinctly from a stage failure because the underlying
// work is not cancelled.
package module
