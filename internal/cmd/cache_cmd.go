package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/youtell/visrec-cli/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local classifier cache",
	}

	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCachePathCmd())
	return cmd
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached data",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			dir, err := cache.DefaultDir()
			if err != nil {
				return fmt.Errorf("could not determine cache directory: %w", err)
			}
			cache.ClearAll(dir)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", dir)
			return nil
		}),
	}
}

func newCachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the cache directory path",
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			dir, err := cache.DefaultDir()
			if err != nil {
				return fmt.Errorf("could not determine cache directory: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), dir)

			entries, err := os.ReadDir(dir)
			if err != nil {
				return nil // not created yet
			}
			for _, e := range entries {
				if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
					continue
				}
				info, err := e.Info()
				if err != nil {
					continue
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s (%d bytes)\n", e.Name(), info.Size())
			}
			return nil
		}),
	}
}
