package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"evidentia/internal/config"
	"evidentia/internal/logging"
	"evidentia/internal/queue"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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

func (c *commandContext) openStore() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

// newLogger builds the CLI logger. The configured format wins; when the
// config leaves it at the console default but output is not a terminal, JSON
// is used so piped output stays machine-readable.
func (c *commandContext) newLogger(toFile bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	format := cfg.Logging.Format
	if format == "console" && !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		format = "json"
	}

	outputs := []string{"stderr"}
	if toFile {
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "evidentia.log"))
	}
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      format,
		OutputPaths: outputs,
	})
}
