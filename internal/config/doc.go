// Package config loads, normalizes, and validates Limpet configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the controller and CLI need; derived runtime paths (instance lock, liveness
// marker, IPC socket, task database) are exposed as methods so path literals
// are not scattered through the controller.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
