package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/gitpulse/gitpulse-go/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured projects and their last analytics runs",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Printf("Storage: %s\n", cfg.Storage.Type)
	fmt.Printf("Window:  %d days\n", cfg.Analysis.WindowDays)
	if cfg.Cache.Enabled {
		fmt.Printf("Cache:   %s (ttl %s)\n", cfg.Cache.Path, cfg.Cache.TTL)
	} else {
		fmt.Printf("Cache:   disabled\n")
	}

	if len(cfg.Projects) == 0 {
		fmt.Println("\nNo projects configured.")
		return nil
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("\nProjects:")
	for id, path := range cfg.Projects {
		fmt.Printf("  %s (%s)\n", id, path)
		for _, kind := range []models.DatasetKind{models.DatasetCoChange, models.DatasetHeatmap} {
			wm, err := store.GetWatermark(ctx, id, kind)
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Printf("    %-9s  never indexed\n", kind)
				continue
			}
			if err != nil {
				return err
			}
			fmt.Printf("    %-9s  last run %s (window %d days)\n",
				kind, wm.LastRunAt.Format(time.RFC3339), wm.WindowDays)
		}
	}

	return nil
}
