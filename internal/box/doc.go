// Package box defines the isolated-execution-context boundary.
//
// A Box hosts one module's code with its own dependency isolation. The
// container never looks inside a box; it only creates one, calls the
// module's start/stop capabilities through it, reads its manifest, and
// releases it. RemoteProvider implements the boundary against an
// external box daemon speaking JSON over HTTP, with retries and a
// circuit breaker around daemon calls.
package box
