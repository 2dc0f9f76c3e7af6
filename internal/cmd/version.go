package cmd

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the launcher version and build details.

Use 'memate-launcher check' to see whether a newer MeMate build is available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd.OutOrStdout(), opts.build)
		},
	}
}

func runVersion(w io.Writer, build buildInfo) error {
	_, err := fmt.Fprintf(w, "memate-launcher version %s\ncommit: %s\nbuilt: %s\ngo: %s %s/%s\n",
		build.version, build.commit, build.date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return err
}
