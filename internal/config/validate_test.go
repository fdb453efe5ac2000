package config

import "testing"

func TestValidateSuccess(t *testing.T) {
	cfg := DefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateFailure(t *testing.T) {
	cfg := Config{
		Version: 2,
		Performance: PerformanceConfig{
			Parallel:        0,
			PrefetchWorkers: 0,
			UploadWorkers:   0,
			QueueSize:       0,
		},
		Transport: TransportConfig{
			TimeoutSeconds:      0,
			ParallelConnections: 0,
		},
		Log: LogConfig{
			Level:  "verbose",
			Format: "xml",
		},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	validationErr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Problems) < 5 {
		t.Fatalf("expected multiple problems, got %v", validationErr.Problems)
	}
}
