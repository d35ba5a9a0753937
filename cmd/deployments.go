package cmd

import (
	"fmt"
	"io"

	"github.com/Mohsinsiddi/idodeploy/internal/config"
	"github.com/Mohsinsiddi/idodeploy/internal/contract"
	"github.com/Mohsinsiddi/idodeploy/internal/ui"
	"github.com/spf13/cobra"
)

var (
	deploymentsNetwork string
	deploymentsLatest  bool
)

var deploymentsCmd = &cobra.Command{
	Use:   "deployments",
	Short: "Inspect recorded deployments",
}

var deploymentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded deployments, newest first",
	Long: `List recorded deployments, newest first.

With --latest only the address of the newest deployment on the network is
printed, so it can be used in scripts.`,
	Example: `  idodeploy deployments list --network harmony
  IDO=$(idodeploy deployments list --latest -n harmony)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		if deploymentsLatest {
			return latestDeployment(s, deploymentsNetwork, cmd.OutOrStdout())
		}
		return listDeployments(s, deploymentsNetwork, cmd.OutOrStdout())
	},
}

// latestDeployment prints the address of the newest deployment on network,
// falling back to the default network.
func latestDeployment(s *config.Settings, network string, w io.Writer) error {
	name, _, err := s.ResolveNetwork(network)
	if err != nil {
		return err
	}
	reg := contract.NewRegistry(s.DeploymentsPath())
	if err := reg.Load(); err != nil {
		return err
	}
	d, err := reg.Latest(name)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, d.Address)
	return nil
}

func listDeployments(s *config.Settings, network string, w io.Writer) error {
	reg := contract.NewRegistry(s.DeploymentsPath())
	if err := reg.Load(); err != nil {
		return err
	}

	t := ui.NewTable([]ui.Column{
		{Title: "Deployed"},
		{Title: "Network"},
		{Title: "Address"},
		{Title: "Owner"},
		{Title: "Tx"},
	})
	for _, d := range reg.All() {
		if network != "" && d.Network != network {
			continue
		}
		owner := "deployer"
		if d.OwnershipTransferred {
			owner = ui.TruncateAddr(d.NewOwner)
		} else if d.NewOwner != "" {
			owner = "deployer (skipped)"
		}
		t.AddRow(ui.Row{d.DeployedAt, d.Network, d.Address, owner, ui.TruncateAddr(d.TxHash)})
	}

	if len(t.Rows) == 0 {
		fmt.Fprintln(w, ui.Info("No deployments recorded in "+s.DeploymentsPath()))
		return nil
	}
	fmt.Fprint(w, t.Render())
	return nil
}

func init() {
	deploymentsListCmd.Flags().StringVarP(&deploymentsNetwork, "network", "n", "", "only this network")
	deploymentsListCmd.Flags().BoolVar(&deploymentsLatest, "latest", false, "print only the newest deployment address")
	deploymentsCmd.AddCommand(deploymentsListCmd)
}
