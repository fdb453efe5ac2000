package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/spf13/cobra"
)

func newStatsCommand(app *AppContext) *cobra.Command {
	var missing string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print aggregate dataset statistics, or tracks missing a component",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if missing != "" {
				tracks := ds.Index.MissingComponent(missing)
				if app.Opts.JSON {
					return json.NewEncoder(app.IO.Out).Encode(tracks)
				}
				for _, t := range tracks {
					fmt.Fprintln(app.IO.Out, t.TrackPath)
				}
				fmt.Fprintf(app.IO.ErrOut, "%d track(s) missing %q\n", len(tracks), missing)
				return nil
			}

			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(ds.Index)
			}

			fmt.Fprintf(app.IO.Out, "tracks:  %d\n", len(ds.Index.Tracks))
			fmt.Fprintf(app.IO.Out, "files:   %d\n", ds.Index.TotalFiles)
			fmt.Fprintf(app.IO.Out, "size:    %s\n", humanize.Bytes(uint64(ds.Index.TotalSize)))
			fmt.Fprintf(app.IO.Out, "artists: %d\n", len(ds.Index.AlbumByArtist))

			names := make([]string, 0, len(ds.Index.StatsByLocation))
			for name := range ds.Index.StatsByLocation {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				s := ds.Index.StatsByLocation[name]
				fmt.Fprintf(app.IO.Out, "  %-12s files=%-6d tracks=%-6d albums=%-5d artists=%-5d size=%s\n",
					name, s.Files, s.Tracks, s.Albums, s.Artists, humanize.Bytes(uint64(s.Size)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&missing, "missing", "", "List tracks missing this component instead of printing aggregate stats")
	return cmd
}
