// Package instance arbitrates single-instance execution. Exactly one limpet
// process may hold the advisory lock; later launches forward an activation
// to the lock holder and exit cleanly.
package instance
