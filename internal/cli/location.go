package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/jaa/blackbird/internal/mover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newLocationCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Manage the set of physical storage locations backing the dataset",
	}
	cmd.AddCommand(newLocationListCommand(app))
	cmd.AddCommand(newLocationAddCommand(app))
	cmd.AddCommand(newLocationRemoveCommand(app))
	cmd.AddCommand(newLocationMoveFoldersCommand(app))
	cmd.AddCommand(newLocationBalanceCommand(app))
	return cmd
}

func newLocationListCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered locations and their root paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			names := ds.Registry.Names()
			if app.Opts.JSON {
				out := map[string]string{}
				for _, n := range names {
					path, _ := ds.Registry.Path(n)
					out[n] = path
				}
				return json.NewEncoder(app.IO.Out).Encode(out)
			}
			for _, n := range names {
				path, _ := ds.Registry.Path(n)
				fmt.Fprintf(app.IO.Out, "%-12s %s\n", n, path)
			}
			return nil
		},
	}
}

func newLocationAddCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME PATH",
		Short: "Register a new storage location",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if err := ds.AddLocation(args[0], args[1]); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			fmt.Fprintf(app.IO.Out, "location: added %q -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func newLocationRemoveCommand(app *AppContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "remove NAME",
		Short: "Unregister a storage location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if err := ds.RemoveLocation(args[0], force); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			fmt.Fprintf(app.IO.Out, "location: removed %q\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Remove even if the index still reports files under this location")
	return cmd
}

func runMove(app *AppContext, source, target string, selection mover.Selection) error {
	ds, err := openDataset(app)
	if err != nil {
		return withExitCode(exitcode.RuntimeFailure, err)
	}

	stateDir := ds.Root
	plan, err := mover.BuildPlan(ds.Index, ds.Registry, source, target, selection, stateDir, time.Now())
	if err != nil {
		return withExitCode(exitcode.RuntimeFailure, err)
	}

	var totalSize int64
	for _, item := range plan.Items {
		totalSize += item.Size
	}
	fmt.Fprintf(app.IO.Out, "move: %d file(s), %s planned (operation %s)\n",
		len(plan.Items), humanize.Bytes(uint64(totalSize)), plan.State.ID())
	app.logger().WithFields(logrus.Fields{
		"operation": plan.State.ID(),
		"source":    source,
		"target":    target,
		"bytes":     totalSize,
	}).Debug("move plan built")

	if app.Opts.DryRun {
		return plan.State.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
	defer stop()

	runErr := mover.Execute(ctx, plan)
	if closeErr := plan.State.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	if err := ds.Reindex(time.Now()); err != nil {
		return withExitCode(exitcode.RuntimeFailure, err)
	}
	if runErr != nil {
		return withExitCode(exitcode.RuntimeFailure, runErr)
	}

	fmt.Fprintf(app.IO.Out, "move: done, operation %s\n", plan.State.ID())
	return nil
}

func newLocationMoveFoldersCommand(app *AppContext) *cobra.Command {
	var source, target string

	cmd := &cobra.Command{
		Use:   "move-folders FOLDER...",
		Short: "Move specific artist or album symbolic paths between locations in full",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(app, source, target, mover.Selection{Folders: args})
		},
	}
	cmd.Flags().StringVar(&source, "from", "", "Source location name")
	cmd.Flags().StringVar(&target, "to", "", "Target location name")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newLocationBalanceCommand(app *AppContext) *cobra.Command {
	var source, target string
	var sizeGB float64

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Move whole albums from one location to another until a size budget is met, never splitting an album",
		RunE: func(cmd *cobra.Command, args []string) error {
			budget := int64(sizeGB * 1e9)
			return runMove(app, source, target, mover.Selection{SizeBudget: budget})
		},
	}
	cmd.Flags().StringVar(&source, "from", "", "Source location name")
	cmd.Flags().StringVar(&target, "to", "", "Target location name")
	cmd.Flags().Float64Var(&sizeGB, "size", 0, "Size budget in GB to move (whole albums only)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}
