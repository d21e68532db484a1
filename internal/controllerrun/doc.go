// Package controllerrun assembles the daemon process: arbitration, startup
// probe, logging, the task executor, the IPC server, the surface, and the
// signal loop that feeds quit and show requests into the controller.
package controllerrun
