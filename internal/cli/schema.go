package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/jaa/blackbird/internal/schema"
	"github.com/spf13/cobra"
)

func newSchemaCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and edit the dataset's component schema",
	}
	cmd.AddCommand(newSchemaShowCommand(app))
	cmd.AddCommand(newSchemaDiscoverCommand(app))
	cmd.AddCommand(newSchemaAddCommand(app))
	return cmd
}

func newSchemaShowCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current component definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(ds.Schema)
			}
			names := make([]string, 0, len(ds.Schema.Components))
			for name := range ds.Schema.Components {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				def := ds.Schema.Components[name]
				fmt.Fprintf(app.IO.Out, "%-16s pattern=%-20q multiple=%-5v %s\n", name, def.Pattern, def.Multiple, def.Description)
			}
			return nil
		},
	}
}

func newSchemaDiscoverCommand(app *AppContext) *cobra.Command {
	var sampleArtists []string
	var save bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Infer a component schema by scanning sample artists' filenames",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := datasetRoot(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			discovered, err := schema.Discover(root, sampleArtists)
			if err != nil {
				return withExitCode(exitcode.SchemaError, err)
			}

			if save {
				ds, err := openDataset(app)
				if err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
				ds.Schema = discovered
				if err := ds.SaveSchema(); err != nil {
					return withExitCode(exitcode.RuntimeFailure, err)
				}
			}

			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(discovered)
			}
			names := make([]string, 0, len(discovered.Components))
			for name := range discovered.Components {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				def := discovered.Components[name]
				fmt.Fprintf(app.IO.Out, "%-16s pattern=%-20q multiple=%v\n", name, def.Pattern, def.Multiple)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sampleArtists, "sample-artist", nil, "Artist directory to sample for discovery (repeatable; default: all)")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the discovered schema as the dataset's schema")
	return cmd
}

func newSchemaAddCommand(app *AppContext) *cobra.Command {
	var multiple bool
	var description string

	cmd := &cobra.Command{
		Use:   "add NAME PATTERN",
		Short: "Add a component definition to the schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if err := ds.Schema.AddComponent(args[0], args[1], multiple, description); err != nil {
				return withExitCode(exitcode.SchemaError, err)
			}
			if err := ds.SaveSchema(); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			fmt.Fprintf(app.IO.Out, "schema: added component %q (%s)\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&multiple, "multiple", false, "Allow multiple files per track for this component")
	cmd.Flags().StringVar(&description, "description", "", "Human-readable description")
	return cmd
}
