package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/streamflix/flixstore/internal/blobstore"
	"github.com/streamflix/flixstore/internal/models"
)

var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Manage binary payloads",
}

var blobPutCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Store a file as a blob",
	Long: `Store a file in the blob store. Files larger than the configured chunk
size take the chunked path and can be resumed if interrupted.`,
	Args: cobra.ExactArgs(1),
	Run:  runBlobPut,
}

var blobGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Read a blob to a file",
	Args:  cobra.ExactArgs(1),
	Run:   runBlobGet,
}

var blobRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a blob",
	Args:  cobra.ExactArgs(1),
	Run:   runBlobRm,
}

var blobProgressCmd = &cobra.Command{
	Use:   "progress <id>",
	Short: "Show chunk upload progress",
	Args:  cobra.ExactArgs(1),
	Run:   runBlobProgress,
}

var blobLsCmd = &cobra.Command{
	Use:   "ls <author>",
	Short: "List an author's chunked blobs",
	Args:  cobra.ExactArgs(1),
	Run:   runBlobLs,
}

var (
	blobAuthor string
	blobType   string
	blobOut    string
)

func init() {
	blobPutCmd.Flags().StringVar(&blobAuthor, "author", "", "owning user id")
	blobPutCmd.Flags().StringVar(&blobType, "type", "", "content type")
	blobGetCmd.Flags().StringVarP(&blobOut, "out", "o", "", "output file (defaults to the blob id)")

	blobCmd.AddCommand(blobPutCmd)
	blobCmd.AddCommand(blobGetCmd)
	blobCmd.AddCommand(blobRmCmd)
	blobCmd.AddCommand(blobProgressCmd)
	blobCmd.AddCommand(blobLsCmd)
}

// requireBlobs opens the platform and fails fast when the blob store is
// unavailable.
func requireBlobs() *cmdContext {
	c := initContext()
	if !c.Platform.SupportStatus().Supported {
		c.Close()
		exitError("blob store unavailable")
	}
	return c
}

func runBlobPut(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := requireBlobs()
	defer c.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		exitError("failed to read file: %v", err)
	}

	ref, err := c.Platform.StoreVideoAsset(ctx, blobstore.TableVideos, data, blobType, blobAuthor)
	if err != nil {
		exitError("failed to store blob: %v", err)
	}

	id, _ := models.ParseBlobRef(ref)
	fmt.Printf("Stored %s (%s)\n", id, humanize.Bytes(uint64(len(data))))
	fmt.Printf("Reference: %s\n", ref)
}

func runBlobGet(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := requireBlobs()
	defer c.Close()

	id := args[0]
	data, _, err := c.Platform.LoadAsset(ctx, models.BlobRef(id))
	if err != nil {
		if errors.Is(err, blobstore.ErrMissingChunk) {
			exitError("blob %s is incomplete: %v", shortID(id), err)
		}
		exitError("failed to read blob: %v", err)
	}

	out := blobOut
	if out == "" {
		out = filepath.Base(id)
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		exitError("failed to write %s: %v", out, err)
	}
	fmt.Printf("Wrote %s (%s)\n", out, humanize.Bytes(uint64(len(data))))
}

func runBlobRm(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := requireBlobs()
	defer c.Close()

	blobs := c.Platform.Blobs()
	id := args[0]

	err := blobs.DeleteLarge(ctx, id)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		exitError("failed to delete blob: %v", err)
	}
	for _, table := range []string{blobstore.TableVideos, blobstore.TableImages} {
		if err := blobs.DeleteSmall(ctx, table, id); err != nil {
			exitError("failed to delete blob: %v", err)
		}
	}
	fmt.Printf("Deleted %s\n", id)
}

func runBlobProgress(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := requireBlobs()
	defer c.Close()

	progress, err := c.Platform.Blobs().LargeProgress(ctx, args[0], c.Config.ChunkSize)
	if err != nil {
		exitError("failed to read progress: %v", err)
	}
	if !progress.Exists {
		fmt.Println("No upload in progress")
		return
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Printf("Size: %s, chunks: %d/%d\n",
		humanize.Bytes(uint64(progress.Size)), progress.UploadedChunks, progress.TotalChunks)
	if progress.UploadedChunks >= progress.TotalChunks {
		green.Println("Upload complete")
	} else {
		yellow.Println("Upload incomplete, can be resumed")
	}
}

func runBlobLs(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	c := requireBlobs()
	defer c.Close()

	manifests, err := c.Platform.Blobs().ManifestsByAuthor(ctx, args[0])
	if err != nil {
		exitError("failed to list blobs: %v", err)
	}
	if len(manifests) == 0 {
		fmt.Println("No chunked blobs")
		return
	}
	for _, m := range manifests {
		fmt.Printf("%s  %s  %d chunks  %s\n",
			m.ID, humanize.Bytes(uint64(m.Size)), len(m.ChunkIDs), m.UploadTime.Format("2006-01-02 15:04"))
	}
}
