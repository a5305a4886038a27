// Package http exposes the container's management API and the module
// traffic hook.
//
// Handlers implements the REST surface for lifecycle operations,
// module listing, version inspection and event history. Hook mounts
// and unmounts per-module HTTP handlers as modules deploy and
// undeploy, dispatching module-addressed requests with the mount
// prefix stripped.
package http
