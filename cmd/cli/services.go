package cli

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/scanprobe/internal/catalog"
)

// servicesCmd lists the well-known ports scanprobe can name.
var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the well-known ports and their service names",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Port", "Service")
		for _, port := range catalog.Ports() {
			_ = table.Append([]string{strconv.Itoa(int(port)), catalog.Lookup(port)})
		}
		_ = table.Render()
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)
}
