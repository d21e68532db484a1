package ipc

import "time"

// ShowRequest asks the daemon to reveal its surface.
type ShowRequest struct{}

// ShowResponse reports the resulting surface state.
type ShowResponse struct {
	State string
}

// QuitRequest is the sanctioned exit control over IPC.
type QuitRequest struct{}

// QuitResponse acknowledges the quit.
type QuitResponse struct {
	Quitting bool
}

// StatusRequest asks for a controller snapshot.
type StatusRequest struct{}

// TaskSummary is the wire form of one task run.
type TaskSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Resolved   bool
	Success    bool
	ExitCode   int
	Error      string
	Lines      int64
}

// StatusResponse is the controller snapshot.
type StatusResponse struct {
	Running      bool
	PID          int
	SurfaceState string
	Intent       string
	Supervised   bool
	LockPath     string
	MarkerPath   string
	SocketPath   string
	TaskActive   bool
	LastTask     *TaskSummary
}

// TaskStartRequest launches the background worker.
type TaskStartRequest struct{}

// TaskStartResponse reports the accepted run, or the rejection reason when a
// run is already active.
type TaskStartResponse struct {
	Started bool
	RunID   string
	Message string
}

// TaskStatusRequest asks about the active or most recent run.
type TaskStatusRequest struct{}

// TaskStatusResponse carries the run summary; Known is false when no run has
// ever been started.
type TaskStatusResponse struct {
	Known  bool
	Active bool
	Task   TaskSummary
}

// TaskHistoryRequest lists persisted runs, newest first. Limit zero means
// all.
type TaskHistoryRequest struct {
	Limit int
}

// TaskHistoryResponse carries persisted run records.
type TaskHistoryResponse struct {
	Tasks []TaskSummary
}
