package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"limpet/internal/controller"
	"limpet/internal/logging"
	"limpet/internal/task"
	"limpet/internal/taskstore"
)

// Server exposes controller operations via JSON-RPC over a Unix domain
// socket.
type Server struct {
	path       string
	logger     *slog.Logger
	listener   net.Listener
	rpcServer  *rpc.Server
	controller *controller.Controller

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. The store
// may be nil; TaskHistory then reports an error.
func NewServer(ctx context.Context, path string, ctrl *controller.Controller, store *taskstore.Store, logger *slog.Logger) (*Server, error) {
	if ctrl == nil {
		return nil, errors.New("ipc server requires controller")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{controller: ctrl, store: store, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Limpet", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:       path,
		logger:     logger,
		listener:   listener,
		rpcServer:  rpcServer,
		controller: ctrl,
		ctx:        serverCtx,
		cancel:     cancel,
	}, nil
}

// guardGoroutine routes a panic in one of the server's own goroutines into
// the controller's fault path instead of crashing the process unseen.
func (s *Server) guardGoroutine() {
	if r := recover(); r != nil {
		s.logger.Error("IPC goroutine fault",
			logging.Any("fault", r),
			logging.String(logging.FieldEventType, "ipc_fault"),
		)
		s.controller.HandleFault(r)
	}
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.guardGoroutine()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.guardGoroutine()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	controller *controller.Controller
	store      *taskstore.Store
	logger     *slog.Logger
	ctx        context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

// guard recovers a panic in an RPC method. net/rpc dispatches every call on
// its own goroutine and does not recover panics, so each method routes them
// into the controller's fault path and answers the client with an error.
func (s *service) guard(err *error) {
	if r := recover(); r != nil {
		s.log().Error("RPC method fault",
			logging.Any("fault", r),
			logging.String(logging.FieldEventType, "ipc_fault"),
		)
		s.controller.HandleFault(r)
		*err = fmt.Errorf("internal fault: %v", r)
	}
}

func (s *service) Show(_ ShowRequest, resp *ShowResponse) (err error) {
	defer s.guard(&err)
	s.log().Debug("surface show requested")
	if err := s.controller.Show(); err != nil {
		return err
	}
	resp.State = s.controller.Status().SurfaceState
	s.log().Info("surface shown via IPC",
		logging.String(logging.FieldEventType, "surface_show"))
	return nil
}

func (s *service) Quit(_ QuitRequest, resp *QuitResponse) (err error) {
	defer s.guard(&err)
	s.log().Debug("quit requested")
	s.controller.Quit()
	resp.Quitting = true
	s.log().Info("sanctioned quit via IPC",
		logging.String(logging.FieldEventType, "quit_requested"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) (err error) {
	defer s.guard(&err)
	status := s.controller.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.SurfaceState = status.SurfaceState
	resp.Intent = status.Intent
	resp.Supervised = status.Supervised
	resp.LockPath = status.LockPath
	resp.MarkerPath = status.MarkerPath
	resp.SocketPath = status.SocketPath
	resp.TaskActive = status.TaskActive
	if status.LastTask != nil {
		summary := fromSnapshot(status.LastTask)
		resp.LastTask = &summary
	}
	return nil
}

func (s *service) TaskStart(_ TaskStartRequest, resp *TaskStartResponse) (err error) {
	defer s.guard(&err)
	s.log().Debug("task start requested")
	run, err := s.controller.StartTask(s.ctx)
	if errors.Is(err, task.ErrTaskActive) {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	if err != nil {
		return err
	}
	resp.Started = true
	resp.RunID = run.ID
	s.log().Info("task started via IPC",
		logging.String(logging.FieldEventType, "task_start"),
		logging.String(logging.FieldTaskID, run.ID))
	return nil
}

func (s *service) TaskStatus(_ TaskStatusRequest, resp *TaskStatusResponse) (err error) {
	defer s.guard(&err)
	status := s.controller.Status()
	if status.LastTask == nil {
		resp.Known = false
		return nil
	}
	resp.Known = true
	resp.Active = status.TaskActive
	resp.Task = fromSnapshot(status.LastTask)
	return nil
}

func (s *service) TaskHistory(req TaskHistoryRequest, resp *TaskHistoryResponse) (err error) {
	defer s.guard(&err)
	if s.store == nil {
		return errors.New("task history store is unavailable")
	}
	records, err := s.store.List(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Tasks = make([]TaskSummary, 0, len(records))
	for _, record := range records {
		resp.Tasks = append(resp.Tasks, fromRecord(record))
	}
	return nil
}

func fromSnapshot(snap *controller.TaskSnapshot) TaskSummary {
	return TaskSummary{
		ID:        snap.ID,
		StartedAt: snap.StartedAt,
		Resolved:  snap.Resolved,
		Success:   snap.Success,
		ExitCode:  snap.ExitCode,
		Error:     snap.Error,
		Lines:     snap.Lines,
	}
}

func fromRecord(record taskstore.Record) TaskSummary {
	return TaskSummary{
		ID:         record.ID,
		StartedAt:  record.StartedAt,
		FinishedAt: record.FinishedAt,
		Resolved:   record.Finished,
		Success:    record.Success,
		ExitCode:   record.ExitCode,
		Error:      record.Error,
		Lines:      int64(record.Lines),
	}
}
