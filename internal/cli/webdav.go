package cli

import (
	"fmt"

	"github.com/jaa/blackbird/internal/exitcode"
	"github.com/spf13/cobra"
)

// newWebdavCommand stands in for provisioning a WebDAV origin server.
// Running one is out of scope: blackbird only ever speaks to an existing
// origin as a client, via internal/transport.
func newWebdavCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{Use: "webdav", Short: "Provision a WebDAV origin server (out of scope)"}
	cmd.AddCommand(newWebdavSetupCommand(app))
	return cmd
}

func newWebdavSetupCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Not implemented: set up your own WebDAV server as a sync origin",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(app.IO.ErrOut, "blackbird does not provision WebDAV servers.")
			fmt.Fprintln(app.IO.ErrOut, "Point `blackbird sync`/`clone` at an existing WebDAV origin instead; any")
			fmt.Fprintln(app.IO.ErrOut, "server that speaks standard WebDAV PROPFIND/GET/PUT works (nginx with")
			fmt.Fprintln(app.IO.ErrOut, "dav_ext_module, Apache mod_dav, rclone serve webdav, etc).")
			return withExitCode(exitcode.InvalidUsage, fmt.Errorf("webdav setup is out of scope"))
		},
	}
}
