// Package server is the container's composition root.
//
// It declares the backend systems in start order (configuration,
// metrics, notification bus, event journal, traffic hook, box
// provider, lifecycle manager, search, event stream, optional
// hot-deploy watcher), builds the management API router over them, and
// runs the whole stack until a termination signal.
package server
