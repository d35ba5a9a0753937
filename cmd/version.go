package cmd

import (
	"fmt"

	"github.com/Mohsinsiddi/idodeploy/internal/config"
	"github.com/Mohsinsiddi/idodeploy/internal/ui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), ui.Banner(Version))
		fmt.Fprintln(cmd.OutOrStdout(), ui.Meta("default solc "+config.DefaultSolcVersion))
	},
}
