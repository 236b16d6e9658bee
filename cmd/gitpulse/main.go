package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gitpulse/gitpulse-go/internal/config"
	"github.com/gitpulse/gitpulse-go/internal/engine"
	"github.com/gitpulse/gitpulse-go/internal/git"
	"github.com/gitpulse/gitpulse-go/internal/histcache"
	"github.com/gitpulse/gitpulse-go/internal/storage"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gitpulse",
	Short: "GitPulse - incremental co-change and heat analytics over git history",
	Long: `GitPulse maintains two derived datasets per project from commit history:
co-change groups (files that repeatedly change together) and a file heatmap
(change frequency weighted by recency). Runs are incremental: after the first
full rebuild, each run only processes the commits that entered or left the
rolling analysis window.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logrus.New()
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .gitpulse/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`GitPulse {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(heatmapCmd)
}

// openStore builds the configured store. Caller closes it.
func openStore() (storage.Store, error) {
	switch cfg.Storage.Type {
	case "postgres":
		return storage.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
	default:
		return storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	}
}

// newRunner wires the engine against the configured store, the git CLI, and
// the optional history cache. The returned cleanup closes the cache file.
func newRunner(store storage.Store) (*engine.Runner, func(), error) {
	var provider git.HistoryProvider = git.NewCLIProvider()
	cleanup := func() {}

	if cfg.Cache.Enabled {
		cache, err := histcache.Open(cfg.Cache.Path, provider, cfg.Cache.TTL, logger)
		if err != nil {
			// A broken cache never blocks indexing.
			logger.WithError(err).Warn("history cache unavailable, fetching directly")
		} else {
			provider = cache
			cleanup = func() { cache.Close() }
		}
	}

	resolver := git.NewPathResolver(cfg.Projects)
	return engine.NewRunner(store, provider, resolver, git.NewCLIMeasurer(), logger), cleanup, nil
}
