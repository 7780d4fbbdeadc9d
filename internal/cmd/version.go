package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/youtell/visrec-cli/internal/api"
)

// version is set at build time via ldflags
var version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if isJSON(cmd) {
				return printJSON(cmd, map[string]string{
					"version":     version,
					"api_version": api.DefaultVersion,
					"go":          runtime.Version(),
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "visrec-cli version %s (API %s)\n", version, api.DefaultVersion)
			return nil
		}),
	}
}
