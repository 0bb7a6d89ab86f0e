package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/tabula/engine"
	"github.com/teranos/tabula/mapping"
	"github.com/teranos/tabula/mapping/loader"
)

// WatchCmd represents the watch command
var WatchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Run the configuration loader with hot reload",
	Long: `Load the mapping configuration and watch its files for changes,
reloading on every edit until interrupted. Useful while authoring
mapping files.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := engine.Load()
		if err != nil {
			return err
		}

		dir := cfg.Loader.BaseDir
		if len(args) == 1 {
			dir = args[0]
		}

		opts := loader.DefaultOptions()
		opts.RequireVersions = cfg.Loader.RequireVersions
		if cfg.Loader.DebounceMs > 0 {
			opts.DebouncePeriod = time.Duration(cfg.Loader.DebounceMs) * time.Millisecond
		}

		ldr, err := loader.New(dir, opts)
		if err != nil {
			return err
		}
		if _, err := ldr.Load(); err != nil {
			pterm.Error.Printf("Initial load failed: %v\n", err)
			return err
		}

		ldr.OnReload(func(config *mapping.Configuration) error {
			stats := ldr.Stats()
			pterm.Info.Printf("Reloaded configuration (loads: %d, failures: %d)\n",
				stats.Loads, stats.Failures)
			return nil
		})

		if err := ldr.StartWatching(); err != nil {
			return err
		}
		defer func() {
			if err := ldr.StopWatching(); err != nil {
				pterm.Warning.Printf("Stopping watcher: %v\n", err)
			}
		}()

		pterm.Success.Printf("Watching %s for changes (Ctrl+C to stop)\n", dir)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		pterm.Println()
		pterm.Info.Printf("Shutting down\n")
		return nil
	},
}
