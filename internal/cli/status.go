package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/streamflix/flixstore/internal/blobstore"
	"github.com/streamflix/flixstore/internal/docstore"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store status",
	Long:  `Show document-store state, collection sizes and blob-store contents.`,
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := initContext()
	defer c.Close()

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	fmt.Printf("Data directory: %s\n", c.Config.Path())
	fmt.Printf("Substrate driver: %s\n", c.Config.KVDriver)
	fmt.Printf("Document store: %s\n", c.Platform.Docs().State())

	fmt.Println("\nCollections:")
	for _, collection := range []string{
		docstore.CollectionUsers,
		docstore.CollectionVideos,
		docstore.CollectionHistory,
		docstore.CollectionMessages,
		docstore.CollectionDynamics,
		docstore.CollectionSearch,
	} {
		fmt.Printf("  %-10s %d records\n", collection, len(c.Platform.Docs().GetAllItems(collection)))
	}

	status := c.Platform.SupportStatus()
	fmt.Println()
	if !status.Supported {
		red.Println("Blob store: unavailable")
		return
	}
	green.Println("Blob store: ready")

	counts, err := c.Platform.Blobs().Counts(ctx)
	if err != nil {
		exitError("failed to read blob counts: %v", err)
	}
	for _, table := range []string{blobstore.TableVideos, blobstore.TableImages, blobstore.TableChunks} {
		fmt.Printf("  %-8s %d entries\n", table, counts[table])
	}

	if info, err := os.Stat(c.Config.BlobsPath()); err == nil {
		fmt.Printf("  on disk  %s\n", humanize.Bytes(uint64(info.Size())))
	}
}
