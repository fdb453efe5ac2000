package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}
	if cfg.Performance.Parallel <= 0 {
		problems = append(problems, "performance.parallel must be > 0")
	}
	if cfg.Performance.PrefetchWorkers <= 0 {
		problems = append(problems, "performance.prefetch_workers must be > 0")
	}
	if cfg.Performance.UploadWorkers <= 0 {
		problems = append(problems, "performance.upload_workers must be > 0")
	}
	if cfg.Performance.QueueSize <= 0 {
		problems = append(problems, "performance.queue_size must be > 0")
	}
	if cfg.Transport.TimeoutSeconds <= 0 {
		problems = append(problems, "transport.timeout_seconds must be > 0")
	}
	if cfg.Transport.ParallelConnections <= 0 {
		problems = append(problems, "transport.parallel_connections must be > 0")
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q is not one of text, json", cfg.Log.Format))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
