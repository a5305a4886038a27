// Package watcher hot-deploys module artifacts from a directory.
//
// An initial sweep deploys artifacts already present; after that,
// filesystem events drive the lifecycle: a matching file appearing or
// changing deploys or redeploys the module named after it, and the
// file disappearing undeploys it. Write bursts are debounced so one
// artifact copy triggers one operation.
package watcher
