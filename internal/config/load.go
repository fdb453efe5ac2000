package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version     *int            `yaml:"version"`
	Performance filePerformance `yaml:"performance"`
	Transport   fileTransport   `yaml:"transport"`
	Log         fileLog         `yaml:"log"`
}

type filePerformance struct {
	Parallel        *int `yaml:"parallel"`
	PrefetchWorkers *int `yaml:"prefetch_workers"`
	UploadWorkers   *int `yaml:"upload_workers"`
	QueueSize       *int `yaml:"queue_size"`
}

type fileTransport struct {
	TimeoutSeconds      *int  `yaml:"timeout_seconds"`
	UseHTTP2            *bool `yaml:"use_http2"`
	ParallelConnections *int  `yaml:"parallel_connections"`
	Profile             *bool `yaml:"profile"`
}

type fileLog struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

// Load builds a Config by layering defaults, then the user config file,
// then the project config file (unless ExplicitPath is given, in which
// case only that file is read), then BLACKBIRD_* environment overrides.
func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}

		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}
	if fc.Performance.Parallel != nil {
		cfg.Performance.Parallel = *fc.Performance.Parallel
	}
	if fc.Performance.PrefetchWorkers != nil {
		cfg.Performance.PrefetchWorkers = *fc.Performance.PrefetchWorkers
	}
	if fc.Performance.UploadWorkers != nil {
		cfg.Performance.UploadWorkers = *fc.Performance.UploadWorkers
	}
	if fc.Performance.QueueSize != nil {
		cfg.Performance.QueueSize = *fc.Performance.QueueSize
	}
	if fc.Transport.TimeoutSeconds != nil {
		cfg.Transport.TimeoutSeconds = *fc.Transport.TimeoutSeconds
	}
	if fc.Transport.UseHTTP2 != nil {
		cfg.Transport.UseHTTP2 = *fc.Transport.UseHTTP2
	}
	if fc.Transport.ParallelConnections != nil {
		cfg.Transport.ParallelConnections = *fc.Transport.ParallelConnections
	}
	if fc.Transport.Profile != nil {
		cfg.Transport.Profile = *fc.Transport.Profile
	}
	if fc.Log.Level != nil {
		cfg.Log.Level = strings.TrimSpace(*fc.Log.Level)
	}
	if fc.Log.Format != nil {
		cfg.Log.Format = strings.TrimSpace(*fc.Log.Format)
	}

	return nil
}

func applyEnvOverrides(cfg *Config, env map[string]string) error {
	if value := strings.TrimSpace(env["BLACKBIRD_PARALLEL"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BLACKBIRD_PARALLEL value %q: %w", value, err)
		}
		cfg.Performance.Parallel = parsed
	}
	if value := strings.TrimSpace(env["BLACKBIRD_PREFETCH_WORKERS"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BLACKBIRD_PREFETCH_WORKERS value %q: %w", value, err)
		}
		cfg.Performance.PrefetchWorkers = parsed
	}
	if value := strings.TrimSpace(env["BLACKBIRD_UPLOAD_WORKERS"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BLACKBIRD_UPLOAD_WORKERS value %q: %w", value, err)
		}
		cfg.Performance.UploadWorkers = parsed
	}
	if value := strings.TrimSpace(env["BLACKBIRD_QUEUE_SIZE"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BLACKBIRD_QUEUE_SIZE value %q: %w", value, err)
		}
		cfg.Performance.QueueSize = parsed
	}
	if value := strings.TrimSpace(env["BLACKBIRD_TRANSPORT_TIMEOUT_SECONDS"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BLACKBIRD_TRANSPORT_TIMEOUT_SECONDS value %q: %w", value, err)
		}
		cfg.Transport.TimeoutSeconds = parsed
	}
	if value := strings.TrimSpace(env["BLACKBIRD_USE_HTTP2"]); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid BLACKBIRD_USE_HTTP2 value %q: %w", value, err)
		}
		cfg.Transport.UseHTTP2 = parsed
	}
	if value := strings.TrimSpace(env["BLACKBIRD_LOG_LEVEL"]); value != "" {
		cfg.Log.Level = value
	}
	if value := strings.TrimSpace(env["BLACKBIRD_LOG_FORMAT"]); value != "" {
		cfg.Log.Format = value
	}
	return nil
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}
