package config

// Config holds ambient, non-dataset settings: worker pool sizes, transport
// tuning, and logging. Dataset-specific persisted state (locations,
// schema, index, operation state) lives under .blackbird/ in the dataset
// root and is owned by the location/schema/index/opstate packages.
type Config struct {
	Version     int               `yaml:"version"`
	Performance PerformanceConfig `yaml:"performance"`
	Transport   TransportConfig   `yaml:"transport"`
	Log         LogConfig         `yaml:"log"`
}

// PerformanceConfig sizes the Synchronizer and Pipeline worker pools
// (spec §5).
type PerformanceConfig struct {
	Parallel        int `yaml:"parallel"`
	PrefetchWorkers int `yaml:"prefetch_workers"`
	UploadWorkers   int `yaml:"upload_workers"`
	QueueSize       int `yaml:"queue_size"`
}

// TransportConfig is the recognized transport configuration set from
// spec §4.5.
type TransportConfig struct {
	TimeoutSeconds      int  `yaml:"timeout_seconds"`
	UseHTTP2            bool `yaml:"use_http2"`
	ParallelConnections int  `yaml:"parallel_connections"`
	Profile             bool `yaml:"profile"`
}

// LogConfig controls structured logging output, built on logrus.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the engine's defaults, matching spec §5's
// documented worker-pool defaults.
func DefaultConfig() Config {
	return Config{
		Version: 1,
		Performance: PerformanceConfig{
			Parallel:        1,
			PrefetchWorkers: 4,
			UploadWorkers:   2,
			QueueSize:       32,
		},
		Transport: TransportConfig{
			TimeoutSeconds:      60,
			UseHTTP2:            true,
			ParallelConnections: 4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
