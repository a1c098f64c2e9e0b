// Package dev provides the development-server plumbing: a filesystem
// change notifier feeding the app's invalidation path, a WebSocket broker
// that pushes reload messages to connected browsers, and a response
// filter that injects the reload client into HTML pages.
package dev
