// Package logging builds slog loggers for the Limpet controller and CLI.
//
// Two handler formats are supported: a compact single-line console format and
// structured JSON. Output fans out to stdout/stderr and a log file in the
// configured log directory. Typed attr helpers and well-known field names keep
// structured events consistent across packages.
package logging
