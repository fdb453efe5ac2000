package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/jaa/blackbird/internal/index"
	"github.com/jaa/blackbird/internal/opstate"
	"github.com/jaa/blackbird/internal/schema"
	"github.com/jaa/blackbird/internal/syncer"
	"github.com/jaa/blackbird/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type syncFlags struct {
	targetLocation   string
	remoteLocation   string
	components       []string
	artists          []string
	albums           []string
	missingComponent string
	proportion       float64
	offset           float64
	parallel         int
	authUser         string
	authPass         string
	timeout          time.Duration
	http2            bool
	forceReindex     bool
}

func addSyncFlags(cmd *cobra.Command, f *syncFlags) {
	cmd.Flags().StringVar(&f.targetLocation, "target-location", "Main", "Local location name files are downloaded into")
	cmd.Flags().StringVar(&f.remoteLocation, "remote-location", "Main", "Location name prefix used by the remote index")
	cmd.Flags().StringArrayVar(&f.components, "component", nil, "Restrict sync to these components (repeatable)")
	cmd.Flags().StringArrayVar(&f.artists, "artist", nil, "Glob filter on artist name (repeatable)")
	cmd.Flags().StringArrayVar(&f.albums, "album", nil, "Glob filter on album name (repeatable)")
	cmd.Flags().StringVar(&f.missingComponent, "missing-component", "", "Only sync tracks missing this component locally")
	cmd.Flags().Float64Var(&f.proportion, "proportion", 0, "Fraction (0,1] of the sorted artist list to sync; 0 means all")
	cmd.Flags().Float64Var(&f.offset, "offset", 0, "Starting offset [0,1) into the sorted artist list")
	cmd.Flags().IntVar(&f.parallel, "parallel", 1, "Number of parallel download workers")
	cmd.Flags().StringVar(&f.authUser, "auth-user", "", "WebDAV basic auth username")
	cmd.Flags().StringVar(&f.authPass, "auth-pass", "", "WebDAV basic auth password")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 60*time.Second, "Per-request transport timeout")
	cmd.Flags().BoolVar(&f.http2, "http2", true, "Use HTTP/2 for the transport connection")
}

func newSyncCommand(app *AppContext) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "sync URL [DEST]",
		Short: "Synchronize a local dataset against a remote WebDAV origin",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(app, args, flags)
		},
	}
	addSyncFlags(cmd, &flags)
	cmd.Flags().BoolVar(&flags.forceReindex, "force-reindex", false, "Reindex even if no files were downloaded")
	return cmd
}

func newCloneCommand(app *AppContext) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "clone URL DEST",
		Short: "Clone a remote dataset's schema and filtered tracks into a new local dataset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.forceReindex = true
			return runSync(app, args, flags)
		},
	}
	addSyncFlags(cmd, &flags)
	return cmd
}

func runSync(app *AppContext, args []string, flags syncFlags) error {
	url := args[0]
	if len(args) > 1 {
		app.Opts.DatasetRoot = args[1]
	}

	ds, err := openDataset(app)
	if err != nil {
		return withExitCode(exitcode.RuntimeFailure, err)
	}

	tcfg := transport.DefaultConfig()
	tcfg.ParallelConnections = flags.parallel
	tcfg.Timeout = flags.timeout
	tcfg.UseHTTP2 = flags.http2
	if flags.authUser != "" {
		tcfg.Auth = &transport.BasicAuth{User: flags.authUser, Pass: flags.authPass}
	}
	client, err := transport.New(url, tcfg)
	if err != nil {
		return withExitCode(exitcode.InvalidUsage, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
	defer stop()

	if err := client.Check(ctx); err != nil {
		return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("check remote: %w", err))
	}

	remoteSchemaPayload, err := client.FetchSchema(ctx)
	if err != nil {
		return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("fetch remote schema: %w", err))
	}
	remoteSchema, err := schema.Decode(remoteSchemaPayload)
	if err != nil {
		return withExitCode(exitcode.SchemaError, err)
	}

	remoteIndexPayload, err := client.FetchIndex(ctx, "index.bin")
	if err != nil {
		return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("fetch remote index: %w", err))
	}
	remoteIdx, err := index.Decode(remoteIndexPayload)
	if err != nil {
		return withExitCode(exitcode.StateError, err)
	}

	filters := syncer.Filters{
		Components:       flags.components,
		Artists:          flags.artists,
		Albums:           flags.albums,
		MissingComponent: flags.missingComponent,
		Proportion:       flags.proportion,
		Offset:           flags.offset,
	}

	stateDir := ds.Root
	plan, err := syncer.BuildPlan(ds.Schema, remoteSchema, remoteIdx, ds.Registry, flags.targetLocation, flags.remoteLocation, stateDir, filters, time.Now())
	if err != nil {
		return withExitCode(exitcode.RuntimeFailure, err)
	}
	fmt.Fprintf(app.IO.Out, "sync: %d file(s) planned (operation %s)\n", len(plan.Items), plan.State.ID())
	app.logger().WithFields(logrus.Fields{
		"operation": plan.State.ID(),
		"files":     len(plan.Items),
		"parallel":  flags.parallel,
	}).Debug("sync plan built")

	runErr := syncer.Execute(ctx, plan, flags.remoteLocation, client, flags.parallel)
	if closeErr := plan.State.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	if err := ds.SaveSchema(); err != nil {
		return withExitCode(exitcode.RuntimeFailure, err)
	}

	pending := plan.State.Pending()
	downloaded := len(plan.Items) - len(pending)
	if flags.forceReindex || downloaded > 0 {
		if err := ds.Reindex(time.Now()); err != nil {
			return withExitCode(exitcode.RuntimeFailure, err)
		}
	}

	if runErr != nil {
		return withExitCode(exitcode.RuntimeFailure, runErr)
	}
	if len(pending) > 0 {
		fmt.Fprintf(app.IO.ErrOut, "sync: %d file(s) still pending/failed, operation %s (rerun `blackbird resume %s`)\n", len(pending), plan.State.ID(), plan.State.ID())
		return withExitCode(exitcode.PartialSuccess, fmt.Errorf("sync finished with %d unresolved file(s)", len(pending)))
	}

	if err := opstate.Remove(stateDir, plan.State.ID()); err != nil {
		return withExitCode(exitcode.RuntimeFailure, err)
	}

	fmt.Fprintf(app.IO.Out, "sync: done, operation %s\n", plan.State.ID())
	return nil
}

func newResumeCommand(app *AppContext) *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "resume OPERATION_ID URL",
		Short: "Resume a previously interrupted sync using its operation state file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			operationID := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(args[0]), "operation_"), ".json")
			url := args[1]

			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			tcfg := transport.DefaultConfig()
			tcfg.ParallelConnections = flags.parallel
			tcfg.Timeout = flags.timeout
			tcfg.UseHTTP2 = flags.http2
			if flags.authUser != "" {
				tcfg.Auth = &transport.BasicAuth{User: flags.authUser, Pass: flags.authPass}
			}
			client, err := transport.New(url, tcfg)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			remoteIndexPayload, err := client.FetchIndex(ctx, "index.bin")
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("fetch remote index: %w", err))
			}
			remoteIdx, err := index.Decode(remoteIndexPayload)
			if err != nil {
				return withExitCode(exitcode.StateError, err)
			}

			stateDir := ds.Root
			plan, err := syncer.Resume(stateDir, operationID, remoteIdx, ds.Registry)
			if err != nil {
				return withExitCode(exitcode.StateError, err)
			}

			runErr := syncer.Execute(ctx, plan, flags.remoteLocation, client, flags.parallel)
			if closeErr := plan.State.Close(); closeErr != nil && runErr == nil {
				runErr = closeErr
			}

			pending := plan.State.Pending()
			if err := ds.Reindex(time.Now()); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if runErr != nil {
				return withExitCode(exitcode.RuntimeFailure, runErr)
			}
			if len(pending) > 0 {
				return withExitCode(exitcode.PartialSuccess, fmt.Errorf("resume finished with %d unresolved file(s)", len(pending)))
			}

			if err := opstate.Remove(stateDir, operationID); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			fmt.Fprintf(app.IO.Out, "resume: done, operation %s\n", operationID)
			return nil
		},
	}
	addSyncFlags(cmd, &flags)
	return cmd
}
