package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Repair malformed records",
	Long: `Run the record repair pass: fill missing collection fields on user and
video records and reconcile category codes with their localized labels.
Safe to run repeatedly.`,
	Run: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := c.Platform.Docs().Repair(); err != nil {
		exitError("repair failed: %v", err)
	}
	fmt.Println("Repair pass complete")
}
