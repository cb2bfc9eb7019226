package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-compiler/cmd/pdf-compiler/ui"
	"github.com/spherical/pdf-compiler/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the artifact cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached artifact",
	Long: `Remove every compiled artifact from the configured shared cache so that
the next compile of each document goes to the compilation service again.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	switch cfg.Cache.Driver {
	case "", "none":
		ui.Info("No cache is configured")
		return nil
	case "memory":
		ui.Info("The memory cache lives inside each process; nothing to clear")
		return nil
	}

	store, err := cache.NewClient(cfg.Cache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	return clearCache(cmd.Context(), store, cfg.Cache.Driver)
}

func clearCache(ctx context.Context, store cache.Client, driver string) error {
	if err := cache.Purge(ctx, store); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	ui.Success("Cleared cached artifacts from the %s cache", driver)
	return nil
}
