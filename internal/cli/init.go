package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jaa/blackbird/internal/config"
	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/spf13/cobra"
)

func newInitCommand(app *AppContext) *cobra.Command {
	force := false

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Bootstrap a dataset (locations.json/schema.json/index.bin under .blackbird) and write a starter config",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := datasetRoot(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if err := ds.SaveRegistry(); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if err := ds.SaveSchema(); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if err := ds.Reindex(time.Now()); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			path := strings.TrimSpace(app.Opts.ConfigPath)
			if path == "" {
				userPath, err := config.UserConfigPath()
				if err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
				path = userPath
			}

			if err := config.EnsureConfigDir(path); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if _, err := os.Stat(path); err == nil && !force {
				if app.Opts.NoInput || !isTTY(os.Stdin) {
					fmt.Fprintf(app.IO.Out, "Dataset bootstrapped at %s (config already exists at %s, rerun with --force to overwrite)\n", root, path)
					return nil
				}
				confirmed, confirmErr := promptYesNo(app, fmt.Sprintf("Config already exists at %s. Overwrite?", path))
				if confirmErr != nil {
					return withExitCode(exitcode.RuntimeFailure, confirmErr)
				}
				if !confirmed {
					fmt.Fprintf(app.IO.Out, "Dataset bootstrapped at %s. Config left unchanged.\n", root)
					return nil
				}
			}

			if err := os.WriteFile(path, []byte(config.DefaultTemplate()), 0o644); err != nil {
				return withExitCode(exitcode.RuntimeFailure, fmt.Errorf("write config file: %w", err))
			}

			fmt.Fprintf(app.IO.Out, "Dataset bootstrapped at %s\n", root)
			fmt.Fprintf(app.IO.Out, "Wrote config: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	return cmd
}

func promptYesNo(app *AppContext, prompt string) (bool, error) {
	fmt.Fprintf(app.IO.Out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(app.IO.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes", nil
}
