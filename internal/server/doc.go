// Package server hosts the Fiber HTTP service: the middleware chain, the mount
// registry built from config, and the bootstrap that wires the disk store,
// file watcher and precompile step around it. Each mount is registered with
// app.Use(route, handler) in config order; requests a mount does not claim fall
// through to the static root (when configured) and finally to a JSON 404.
// Diagnostics live under /-/ and are registered by the routes subpackage.
package server
