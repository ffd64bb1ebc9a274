package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand attaches a `version` subcommand that prints build
// metadata together with the user agent sent to release feeds.
func AttachCobraVersionCommand(root *cobra.Command) {
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long:  "Print the updater build version, commit hash and build timestamp, followed by the User-Agent header used for feed requests.",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "user agent: "+UserAgent())
		},
	})
}
