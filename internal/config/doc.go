// Package config loads, normalizes, and validates the TOML configuration
// that drives the pipeline: directory layout, OpenAI connection settings,
// extractor selection, and workflow concurrency.
package config
