// Package tui is the terminal rendering of the daemon's surface. A fresh
// Bubble Tea program backs every shown surface; hiding or destroying the
// surface stops the program while the daemon lives on.
package tui
