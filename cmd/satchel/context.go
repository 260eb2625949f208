package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"satchel/internal/config"
	"satchel/internal/ipc"
	"satchel/internal/localstore"
	"satchel/internal/queueaccess"
)

type commandContext struct {
	socketFlag *string
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) JSONMode() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) socketPath() string {
	if c.socketFlag == nil {
		return defaultSocketPath()
	}
	if strings.TrimSpace(*c.socketFlag) == "" {
		*c.socketFlag = defaultSocketPath()
	}
	return *c.socketFlag
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

// withQueue opens queue access through the daemon when it is reachable and
// falls back to the local database otherwise, so queue inspection works
// whether or not the daemon is up.
func (c *commandContext) withQueue(fn func(queueaccess.Access) error) error {
	session, err := queueaccess.OpenWithFallback(
		func() (*ipc.Client, error) { return ipc.Dial(c.socketPath()) },
		func() (*localstore.Store, error) {
			cfg, err := c.ensureConfig()
			if err != nil {
				return nil, err
			}
			return localstore.Open(cfg)
		},
	)
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session.Access)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `satchel start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func defaultSocketPath() string {
	cfg, _, _, err := config.Load("")
	if err == nil {
		return cfg.SocketPath()
	}

	logDir, err2 := config.ExpandPath("~/.local/share/satchel/logs")
	if err2 != nil {
		return filepath.Join(os.TempDir(), "satchel.sock")
	}
	return filepath.Join(logDir, "satchel.sock")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
