package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. The OpenAI API key is
// deliberately not required here: read-only commands (status, compile) work
// without it, and the workflow preflight reports a missing key once before
// any item is processed.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	switch c.Workflow.Extractor {
	case ExtractorFFmpeg, ExtractorWAV:
	default:
		return fmt.Errorf("workflow.extractor must be %q or %q", ExtractorFFmpeg, ExtractorWAV)
	}
	if err := ensurePositiveMap(map[string]int{
		"workflow.max_concurrent_items": c.Workflow.MaxConcurrentItems,
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"openai.timeout_seconds":        c.OpenAI.TimeoutSeconds,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	if c.OpenAI.BaseURL == "" {
		return errors.New("openai.base_url must not be empty")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
