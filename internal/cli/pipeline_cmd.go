package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/jaa/blackbird/internal/pipeline"
	"github.com/jaa/blackbird/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// remoteListSource lists a remote directory once and yields its file
// entries, the thinnest WorkSource capable of driving a pipeline run from
// the CLI (spec §6.3's "pipeline run").
type remoteListSource struct {
	mu      sync.Mutex
	dir     string
	entries []transport.Entry
	idx     int
}

func (s *remoteListSource) Next(ctx context.Context) (string, map[string]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.idx < len(s.entries) {
		e := s.entries[s.idx]
		s.idx++
		if e.IsDir {
			continue
		}
		return path.Join(s.dir, e.Name), map[string]string{"size": fmt.Sprintf("%d", e.Size)}, true, nil
	}
	return "", nil, false, nil
}

func newPipelineCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{Use: "pipeline", Short: "Run a streaming download/transform/upload pipeline"}
	cmd.AddCommand(newPipelineRunCommand(app))
	return cmd
}

func newPipelineRunCommand(app *AppContext) *cobra.Command {
	var remoteDir, transformCmd, uploadDir, workDir string
	var queueSize, prefetchWorkers, uploadWorkers, batchSize int
	var authUser, authPass string
	var timeout time.Duration
	var http2 bool

	cmd := &cobra.Command{
		Use:   "run URL",
		Short: "Stream files from a remote directory through a transform command and back to the origin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]

			if workDir == "" {
				root, err := datasetRoot(app)
				if err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
				workDir = filepath.Join(root, ".blackbird", "pipeline")
			}
			if err := os.MkdirAll(workDir, 0o755); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			tcfg := transport.DefaultConfig()
			tcfg.Timeout = timeout
			tcfg.UseHTTP2 = http2
			if authUser != "" {
				tcfg.Auth = &transport.BasicAuth{User: authUser, Pass: authPass}
			}
			client, err := transport.New(url, tcfg)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			entries, err := client.List(ctx, remoteDir)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("list remote dir: %w", err))
			}

			cfg := pipeline.DefaultConfig(workDir)
			if appCfg, err := loadConfig(app); err == nil {
				if v := appCfg.Performance.QueueSize; v > 0 {
					cfg.QueueSize = v
				}
				if v := appCfg.Performance.PrefetchWorkers; v > 0 {
					cfg.PrefetchWorkers = v
				}
				if v := appCfg.Performance.UploadWorkers; v > 0 {
					cfg.UploadWorkers = v
				}
			}
			if queueSize > 0 {
				cfg.QueueSize = queueSize
			}
			if prefetchWorkers > 0 {
				cfg.PrefetchWorkers = prefetchWorkers
			}
			if uploadWorkers > 0 {
				cfg.UploadWorkers = uploadWorkers
			}

			p, err := pipeline.New(cfg, client, client)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			app.logger().WithFields(logrus.Fields{
				"entries":          len(entries),
				"prefetch_workers": cfg.PrefetchWorkers,
				"upload_workers":   cfg.UploadWorkers,
			}).Debug("pipeline run starting")

			source := &remoteListSource{dir: remoteDir, entries: entries}
			p.Run(ctx, source)
			p.StartUploaders(ctx)

			var processed int
			for {
				items, takeErr := p.Take(ctx, batchSize)
				for _, item := range items {
					if err := runTransform(ctx, transformCmd, item, uploadDir, p); err != nil {
						fmt.Fprintf(app.IO.ErrOut, "pipeline: transform failed for %s: %v\n", item.RemotePath, err)
						_ = p.Skip(item)
						continue
					}
					processed++
				}
				if takeErr != nil || len(items) == 0 {
					break
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout+5*time.Second)
			defer cancel()
			if err := p.Shutdown(shutdownCtx); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if errs := p.Errors(); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(app.IO.ErrOut, "pipeline:", e)
				}
				return withExitCode(exitcode.PartialSuccess, fmt.Errorf("pipeline finished with %d error(s)", len(errs)))
			}

			fmt.Fprintf(app.IO.Out, "pipeline: processed %d file(s)\n", processed)
			return nil
		},
	}

	cmd.Flags().StringVar(&remoteDir, "remote-dir", "", "Remote directory to stream files from")
	cmd.Flags().StringVar(&transformCmd, "command", "", "Transform command template; {input} and {output} are substituted")
	cmd.Flags().StringVar(&uploadDir, "upload-dir", "", "Remote directory results are uploaded back into")
	cmd.Flags().StringVar(&workDir, "workdir", "", "Local scratch directory (default: DATASET/.blackbird/pipeline)")
	cmd.Flags().IntVar(&queueSize, "queue-size", 0, "Download queue capacity (default from config)")
	cmd.Flags().IntVar(&prefetchWorkers, "prefetch-workers", 0, "Number of prefetch workers (default from config)")
	cmd.Flags().IntVar(&uploadWorkers, "upload-workers", 0, "Number of upload workers (default from config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 4, "Items pulled from the pipeline per Take() call")
	cmd.Flags().StringVar(&authUser, "auth-user", "", "WebDAV basic auth username")
	cmd.Flags().StringVar(&authPass, "auth-pass", "", "WebDAV basic auth password")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Per-request transport timeout")
	cmd.Flags().BoolVar(&http2, "http2", true, "Use HTTP/2 for the transport connection")
	cmd.MarkFlagRequired("remote-dir")
	cmd.MarkFlagRequired("command")
	return cmd
}

// runTransform runs the user-supplied transform command against item's
// local copy and submits the result for upload. The transform itself is
// an external collaborator invoked as a subprocess, per spec §1.
func runTransform(ctx context.Context, commandTemplate string, item pipeline.Item, uploadDir string, p *pipeline.Pipeline) error {
	outputPath := item.LocalPath + ".out"
	rendered := strings.NewReplacer("{input}", item.LocalPath, "{output}", outputPath).Replace(commandTemplate)

	cmd := exec.CommandContext(ctx, "sh", "-c", rendered)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}

	remoteName := filepath.Join(uploadDir, filepath.Base(item.RemotePath))
	p.SubmitResult(item, outputPath, remoteName)
	return nil
}
