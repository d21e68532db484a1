// Package supervisor is the capability boundary for the external relaunch
// mechanism. Limpet never generates or parses service-manager configuration
// itself; it invokes an opaque, idempotent platform hook once at startup and
// degrades gracefully when the hook is missing or fails.
package supervisor
