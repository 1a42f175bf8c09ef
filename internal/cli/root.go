// Package cli implements the command-line interface for flixstore.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/streamflix/flixstore/internal/config"
	"github.com/streamflix/flixstore/internal/platform"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config   *config.Config
	Platform *platform.Platform
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Platform != nil {
		c.Platform.Close()
	}
}

// initContext loads config and opens the platform stack, waiting for the
// document-store bootstrap.
func initContext() *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	p, err := platform.Open(context.Background(), cfg, platform.WithLogger(buildLogger()))
	if err != nil {
		exitError("failed to open store: %v", err)
	}

	return &cmdContext{Config: cfg, Platform: p}
}

var verbose bool

func buildLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

var rootCmd = &cobra.Command{
	Use:   "flixstore",
	Short: "StreamFlix persistence store",
	Long: `flixstore manages the StreamFlix persistence layer: JSON document
collections over a flat key-value substrate, plus a chunked blob store
for video and image payloads.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(blobCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortID returns first 8 characters of an ID
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
