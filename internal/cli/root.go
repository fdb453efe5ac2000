package cli

import (
	"fmt"
	"os"

	"github.com/jaa/blackbird/internal/config"
	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/jaa/blackbird/internal/logging"
	"github.com/spf13/cobra"
)

func Execute(build BuildInfo, streams IOStreams) int {
	if wd, err := os.Getwd(); err == nil {
		if envErr := loadDotEnvFiles(wd, os.Environ(), os.Setenv); envErr != nil {
			fmt.Fprintln(streams.ErrOut, "WARN:", envErr)
		}
	}

	app := &AppContext{Build: build, IO: streams}
	root := newRootCommand(app)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(streams.ErrOut, "ERROR:", err)
		return mapExitCode(err)
	}
	return exitcode.Success
}

func newRootCommand(app *AppContext) *cobra.Command {
	showVersion := false

	root := &cobra.Command{
		Use:   "blackbird",
		Short: "Manage a large, component-structured music dataset across storage locations",
		Long:  "blackbird indexes a music dataset spread across multiple storage locations, syncs it from a WebDAV origin, and moves albums between locations without ever splitting one.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(app)
				return nil
			}
			return cmd.Help()
		},
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	defaultConfigPath := os.Getenv("BLACKBIRD_CONFIG")
	root.PersistentFlags().StringVarP(&app.Opts.DatasetRoot, "dataset", "d", "", "Dataset root directory (default: current directory)")
	root.PersistentFlags().StringVarP(&app.Opts.ConfigPath, "config", "c", defaultConfigPath, "Path to config file")
	root.PersistentFlags().BoolVar(&app.Opts.JSON, "json", false, "Print JSON instead of text (commands that support it)")
	root.PersistentFlags().BoolVarP(&app.Opts.Quiet, "quiet", "q", false, "Reduce output to errors and summary")
	root.PersistentFlags().BoolVarP(&app.Opts.Verbose, "verbose", "v", false, "Increase diagnostic output")
	root.PersistentFlags().BoolVar(&app.Opts.NoColor, "no-color", false, "Disable color output")
	root.PersistentFlags().BoolVar(&app.Opts.NoInput, "no-input", false, "Disable interactive prompts")
	root.PersistentFlags().BoolVarP(&app.Opts.DryRun, "dry-run", "n", false, "Plan the operation without executing it")
	root.Flags().BoolVar(&showVersion, "version", false, "Print version info")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(exitcode.InvalidUsage, err)
	})

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(app)
		if err != nil {
			// A missing/invalid config shouldn't block commands like
			// `init` that create one; fall back to engine defaults.
			app.Logger = logging.New(config.DefaultConfig().Log, app.IO.ErrOut)
			return nil
		}
		if app.Opts.Verbose {
			cfg.Log.Level = "debug"
		}
		app.Logger = logging.New(cfg.Log, app.IO.ErrOut)
		return nil
	}

	root.AddCommand(newInitCommand(app))
	root.AddCommand(newReindexCommand(app))
	root.AddCommand(newStatsCommand(app))
	root.AddCommand(newFindTracksCommand(app))
	root.AddCommand(newSchemaCommand(app))
	root.AddCommand(newLocationCommand(app))
	root.AddCommand(newCloneCommand(app))
	root.AddCommand(newSyncCommand(app))
	root.AddCommand(newResumeCommand(app))
	root.AddCommand(newDoctorCommand(app))
	root.AddCommand(newPipelineCommand(app))
	root.AddCommand(newWebdavCommand(app))
	root.AddCommand(newVersionCommand(app))

	return root
}

func printVersion(app *AppContext) {
	version := app.Build.Version
	if version == "" {
		version = "dev"
	}
	commit := app.Build.Commit
	if commit == "" {
		commit = "unknown"
	}
	date := app.Build.Date
	if date == "" {
		date = "unknown"
	}

	fmt.Fprintf(app.IO.Out, "blackbird version %s\ncommit: %s\nbuild_date: %s\n", version, commit, date)
}
