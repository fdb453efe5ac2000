package cli

import (
	"fmt"
	"time"

	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/spf13/cobra"
)

func newReindexCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the dataset index by walking every registered location",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := openDataset(app)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			if err := ds.Reindex(time.Now()); err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}
			fmt.Fprintf(app.IO.Out, "reindex: %d file(s), %d track(s), %d byte(s)\n",
				ds.Index.TotalFiles, len(ds.Index.Tracks), ds.Index.TotalSize)
			return nil
		},
	}
}
