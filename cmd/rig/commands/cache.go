package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newCacheCmd(defaultAddr string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and serve the cache",
	}

	cmd.AddCommand(c.newCacheKeyCmd())
	cmd.AddCommand(c.newCacheServeCmd(defaultAddr))

	return cmd
}

func (c *CLI) newCacheKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key [templates...]",
		Short: "Resolve cache key templates against the workspace",
		Long: "Resolve cache key templates against the workspace.\n" +
			"Without arguments, every key used by the job's cache steps is resolved.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.CacheKeys(cmd.Context(), jobFileFlag(cmd), args)
		},
	}
}

func (c *CLI) newCacheServeCmd(defaultAddr string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured blob store over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return c.app.ServeCache(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("addr", defaultAddr, "Listen address")
	return cmd
}
