package config

import "fmt"

func DefaultTemplate() string {
	return fmt.Sprintf(`version: 1
performance:
  parallel: %d
  prefetch_workers: %d
  upload_workers: %d
  queue_size: %d
transport:
  timeout_seconds: %d
  use_http2: true
  parallel_connections: %d
log:
  level: "info"
  format: "text"
`,
		1, 4, 2, 32, 60, 4)
}
