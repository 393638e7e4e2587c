package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/projecteru2/envdo/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version, git revision, and build timestamp",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.String()) //nolint:errcheck
		},
	}
}
