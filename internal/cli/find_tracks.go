package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/jaa/blackbird/internal/index"
	"github.com/spf13/cobra"
)

func newFindTracksCommand(app *AppContext) *cobra.Command {
	var artist, album, has, missing string
	var fuzzy bool

	cmd := &cobra.Command{
		Use:   "find-tracks [QUERY]",
		Short: "Search tracks by name, artist, album, or component presence",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			if artist != "" {
				matches := ds.Index.SearchByArtist(artist, false, fuzzy)
				if len(matches) == 1 {
					artist = matches[0]
				}
			}

			var tracks []*index.Track
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			switch {
			case missing != "":
				for _, t := range ds.Index.MissingComponent(missing) {
					if artist != "" && t.Artist != artist {
						continue
					}
					if album != "" && t.AlbumPath != album {
						continue
					}
					tracks = append(tracks, t)
				}
			default:
				tracks = ds.Index.SearchByTrack(query, artist, album)
			}

			if has != "" {
				filtered := tracks[:0]
				for _, t := range tracks {
					if len(t.Files[has]) > 0 {
						filtered = append(filtered, t)
					}
				}
				tracks = filtered
			}

			sort.Slice(tracks, func(i, j int) bool { return tracks[i].TrackPath < tracks[j].TrackPath })

			if app.Opts.JSON {
				return json.NewEncoder(app.IO.Out).Encode(tracks)
			}
			for _, t := range tracks {
				fmt.Fprintln(app.IO.Out, t.TrackPath)
			}
			if !app.Opts.Quiet {
				fmt.Fprintf(app.IO.ErrOut, "%d track(s) found\n", len(tracks))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&artist, "artist", "", "Restrict to this artist (exact, or fuzzy-resolved with --fuzzy)")
	cmd.Flags().StringVar(&album, "album", "", "Restrict to this album")
	cmd.Flags().StringVar(&has, "has", "", "Only tracks that have this component")
	cmd.Flags().StringVar(&missing, "missing", "", "Only tracks missing this component")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "Allow edit-distance artist matching when no exact match exists")
	return cmd
}
