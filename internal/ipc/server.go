package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"log/slog"

	"satchel/internal/api"
	"satchel/internal/daemon"
	"satchel/internal/logging"
	"satchel/internal/syncqueue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
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
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Satchel", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
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
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
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
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun satchel stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.Online = status.Online
	resp.PID = status.PID
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockPath
	resp.Queue = api.FromQueueStats(status.Queue)
	resp.TableCounts = status.TableCounts
	resp.LastSyncAt = api.FormatMillis(status.LastSyncAt)
	resp.OldestPendingAt = api.FormatMillis(status.OldestPendingAt)
	if status.LastSync != nil {
		report := api.FromSyncResult(*status.LastSync)
		resp.LastSync = &report
	}
	return nil
}

func (s *service) Sync(req SyncRequest, resp *SyncResponse) error {
	s.log().Debug("sync requested", logging.Bool("retry_failed", req.RetryFailed))
	result, err := s.daemon.Sync(s.ctx, req.RetryFailed)
	if err != nil {
		return err
	}
	*resp = api.FromSyncResult(result)
	s.log().Info("sync completed via IPC",
		logging.String(logging.FieldEventType, "sync_requested"),
		logging.Int("synced_count", result.SyncedItems),
		logging.Int("failed_count", result.FailedItems))
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]syncqueue.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		parsed, ok := syncqueue.ParseStatus(status)
		if !ok {
			continue
		}
		statuses = append(statuses, parsed)
	}
	items, err := s.daemon.ListQueue(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = api.FromQueueItems(items)
	return nil
}

func (s *service) QueueStats(_ QueueStatsRequest, resp *QueueStatsResponse) error {
	stats, err := s.daemon.QueueStats(s.ctx)
	if err != nil {
		return err
	}
	*resp = api.FromQueueStats(stats)
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	if strings.TrimSpace(req.ID) == "" {
		return errors.New("queue describe requires an id")
	}
	item, err := s.daemon.DescribeQueueItem(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if item == nil {
		resp.Found = false
		return nil
	}
	resp.Found = true
	resp.Item = api.FromQueueItem(item)
	return nil
}

func (s *service) QueueClearCompleted(_ QueueClearCompletedRequest, resp *QueueClearCompletedResponse) error {
	s.log().Debug("queue clear completed requested")
	removed, err := s.daemon.ClearCompleted(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue completed items cleared",
		logging.String(logging.FieldEventType, "queue_clear_completed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueRetry(_ QueueRetryRequest, resp *QueueRetryResponse) error {
	s.log().Debug("queue retry requested")
	result, err := s.daemon.Sync(s.ctx, true)
	if err != nil {
		return err
	}
	*resp = api.FromSyncResult(result)
	s.log().Info("queue failed items retried",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int("synced_count", result.SyncedItems),
		logging.Int("failed_count", result.FailedItems))
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("queue remove requires at least one id")
	}
	s.log().Debug("queue remove requested", logging.Int("item_count", len(req.IDs)))
	removed, err := s.daemon.RemoveQueueItems(s.ctx, req.IDs)
	resp.Removed = removed
	if err != nil {
		return err
	}
	s.log().Info("queue items removed",
		logging.String(logging.FieldEventType, "queue_remove"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) Import(req ImportRequest, resp *ImportResponse) error {
	if len(req.Players) == 0 {
		return errors.New("import requires at least one player")
	}
	s.log().Debug("import requested", logging.Int("player_count", len(req.Players)))
	records, err := s.daemon.ImportPlayers(s.ctx, req.Players)
	if err != nil {
		return err
	}
	resp.Players = api.FromImportedRecords(records)
	s.log().Info("players imported via IPC",
		logging.String(logging.FieldEventType, "import_requested"),
		logging.Int("imported_count", len(resp.Players)))
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TablesPresent = append(resp.TablesPresent, health.TablesPresent...)
	resp.TablesMissing = append(resp.TablesMissing, health.TablesMissing...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.Error = health.Error
	if err != nil {
		return err
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
