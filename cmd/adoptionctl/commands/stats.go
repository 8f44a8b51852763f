package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/bootstrap"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/metrics"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/notification"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pet and application counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		stores, err := bootstrap.OpenStores(cfg, false, log)
		if err != nil {
			return err
		}
		defer func() { _ = stores.Close() }()

		svcs := bootstrap.NewServices(cfg, stores, notification.NewLogSink(log), metrics.New(false), log)
		stats, err := svcs.Adoptions.GetStats(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(stats)
		}
		header("Pets")
		printCounts(stats.Pets)
		header("Applications")
		printCounts(stats.Adoptions)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func printCounts(counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\t%d\n", k, counts[k])
	}
	_ = w.Flush()
}
