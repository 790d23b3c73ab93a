package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Product cache maintenance",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many products are cached and how old they are",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := scanner.CacheStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cached products: %d\n", st.TotalItems)
		if st.TotalItems > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Oldest entry:    %s ago\n", st.OldestEntryAge.Round(time.Second))
			fmt.Fprintf(cmd.OutOrStdout(), "Newest entry:    %s ago\n", st.NewestEntryAge.Round(time.Second))
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached product",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := scanner.ClearCache(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Product cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
