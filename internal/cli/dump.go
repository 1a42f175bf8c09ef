package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump <collection>",
	Short: "Print a collection as JSON",
	Args:  cobra.ExactArgs(1),
	Run:   runDump,
}

func runDump(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	items := c.Platform.Docs().GetAllItems(args[0])
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		exitError("failed to encode collection: %v", err)
	}
	fmt.Println(string(data))
}
