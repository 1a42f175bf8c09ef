package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamflix/flixstore/internal/config"
	"github.com/streamflix/flixstore/internal/platform"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new flixstore data directory",
	Long: `Initialize a new flixstore data directory in the current directory.
This creates a .flixstore directory holding the document substrate and
the blob database, then runs the storage bootstrap (seed, repair,
migrations).`,
	Run: runInit,
}

var initDriver string

func init() {
	initCmd.Flags().StringVar(&initDriver, "driver", config.DriverSQLite, "kv substrate driver (sqlite or badger)")
}

func runInit(cmd *cobra.Command, args []string) {
	if _, err := config.FindRoot(); err == nil {
		exitError("flixstore data directory already exists")
	}

	fmt.Printf("Initializing flixstore data directory...\n")
	fmt.Printf("Substrate driver: %s\n", initDriver)

	cfg, err := config.Initialize(initDriver)
	if err != nil {
		exitError("failed to initialize config: %v", err)
	}

	p, err := platform.Open(context.Background(), cfg, platform.WithLogger(buildLogger()))
	if err != nil {
		exitError("failed to initialize store: %v", err)
	}
	defer p.Close()

	status := p.SupportStatus()
	if !status.Supported {
		fmt.Printf("Warning: blob store unavailable, binary payloads disabled\n")
	}

	users, _ := p.Users()
	videos, _ := p.Videos()
	fmt.Printf("\nInitialized flixstore in .flixstore/\n")
	fmt.Printf("Seeded %d users, %d videos\n", len(users), len(videos))
}
