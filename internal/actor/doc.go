// Package actor provides the per-module sequential execution unit.
//
// Each module name owns one Actor: a goroutine draining a private FIFO
// queue of work items against the module's authoritative record. Items
// on the same actor never overlap; actors for different names run
// fully in parallel. Slow box I/O never runs inside the queue — it is
// dispatched to plain goroutines that submit a bookkeeping follow-up.
package actor
