// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket.
// The CLI, the show signal from secondary launches, and the sanctioned exit
// control all arrive through here.
package ipc
