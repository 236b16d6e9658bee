package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var heatmapLimit int

var heatmapCmd = &cobra.Command{
	Use:   "heatmap <project-id>",
	Short: "List the hottest files for a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeatmap,
}

func init() {
	heatmapCmd.Flags().IntVar(&heatmapLimit, "limit", 20, "maximum files to print (0 = all)")
}

func runHeatmap(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	projectID := args[0]

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	rows, err := store.ListHeatmap(ctx, projectID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("No heatmap rows for %s. Run 'gitpulse index %s' first.\n", projectID, projectID)
		return nil
	}

	if heatmapLimit > 0 && len(rows) > heatmapLimit {
		rows = rows[:heatmapLimit]
	}

	fmt.Printf("%6s  %7s  %-10s  %s\n", "heat", "changes", "last", "path")
	for _, row := range rows {
		fmt.Printf("%6.2f  %7d  %-10s  %s\n",
			row.HeatScore, row.ChangeCount, row.LastChangedAt.Format(time.DateOnly), row.RelativePath)
	}

	return nil
}
