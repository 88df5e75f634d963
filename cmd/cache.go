package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/oxur/verovioxide-sub000/internal/cache"
	"github.com/oxur/verovioxide-sub000/internal/codes"
	"github.com/oxur/verovioxide-sub000/internal/config"
	"github.com/oxur/verovioxide-sub000/internal/release"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the compiled library cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show cached libraries and disk usage",
	RunE:         runCacheStats,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove every cached library and source tree",
	RunE:         runCacheClear,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func init() {
	cacheCmd.PersistentFlags().StringP("target", "t", "", "Target triple or GOOS/GOARCH (default: host)")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache(cmd *cobra.Command) (*cache.Cache, error) {
	cfg, err := config.NewLoader().LoadForBuild(cmd)
	if err != nil {
		return nil, codes.New(codes.ConfigFailure, err)
	}

	return cache.New(cache.Dir(cfg.WorkspaceRoot), release.Version, cfg.ParsedTarget), nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}

	stats, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	entries, err := c.List()
	if err != nil {
		return fmt.Errorf("failed to list cache entries: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache directory: %s\n", c.Root())
	fmt.Fprintf(out, "Entries:         %d\n", stats.Entries)
	fmt.Fprintf(out, "Libraries:       %s\n", humanize.Bytes(uint64(stats.ArtifactBytes)))
	fmt.Fprintf(out, "Sources:         %s\n", humanize.Bytes(uint64(stats.SourceBytes)))

	for _, e := range entries {
		fmt.Fprintf(out, "  %s %s (%s, %s, built %s)\n",
			e.Version, e.Target, e.Origin, humanize.Bytes(uint64(e.Size)), humanize.Time(e.Timestamp))
	}

	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}

	if err := c.Clear(); err != nil {
		return codes.New(codes.CacheWriteFailure, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", c.Root())
	return nil
}
