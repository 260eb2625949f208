package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"satchel/internal/cache"
	"satchel/internal/config"
	"satchel/internal/connectivity"
	"satchel/internal/daemon"
	"satchel/internal/ipc"
	"satchel/internal/localstore"
	"satchel/internal/logging"
	"satchel/internal/offline"
	"satchel/internal/remotestore"
	"satchel/internal/syncer"
	"satchel/internal/syncqueue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the satchel daemon runtime loop. It blocks until the context is
// canceled or the process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("satchel-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update satchel.log link: %v\n", err)
	}
	logging.PruneOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, "satchel-*.log", logPath)

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := localstore.Open(cfg)
	if err != nil {
		logger.Error("open local store", logging.Error(err))
		return err
	}
	defer store.Close()

	queue, err := syncqueue.NewStore(store.DB())
	if err != nil {
		logger.Error("bind sync queue", logging.Error(err))
		return err
	}
	cacheStore, err := cache.NewStore(store.DB())
	if err != nil {
		logger.Error("bind response cache", logging.Error(err))
		return err
	}

	remote, err := remotestore.New(cfg.Remote.BaseURL, cfg.Remote.APIKey,
		time.Duration(cfg.Remote.RequestTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("create remote client: %w", err)
	}

	sm, err := syncer.NewManager(cfg, queue, store, remote, logger)
	if err != nil {
		return fmt.Errorf("create sync manager: %w", err)
	}

	prober := connectivity.NewProber(cfg, remote, logger)
	facade, err := offline.NewManager(cfg, store, remote, queue, sm, prober, logger)
	if err != nil {
		return fmt.Errorf("create offline manager: %w", err)
	}
	defer facade.Close()

	d, err := daemon.New(cfg, store, queue, cacheStore, facade, sm, prober, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
			logging.String(logging.FieldImpact, "daemon will not sync until started via IPC"),
		)
	}

	<-signalCtx.Done()
	logger.Info("satchel daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "satchel.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
