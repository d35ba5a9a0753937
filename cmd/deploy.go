package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Mohsinsiddi/idodeploy/internal/chain"
	"github.com/Mohsinsiddi/idodeploy/internal/config"
	"github.com/Mohsinsiddi/idodeploy/internal/contract"
	"github.com/Mohsinsiddi/idodeploy/internal/ido"
	"github.com/Mohsinsiddi/idodeploy/internal/rpc"
	"github.com/Mohsinsiddi/idodeploy/internal/ui"
	"github.com/Mohsinsiddi/idodeploy/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
)

type deployFlags struct {
	network   string
	artifact  string
	rpc       string
	answer    string
	answerSet bool
}

// deployEnv carries the process streams and key store a deploy runs with.
type deployEnv struct {
	in          io.Reader
	out         io.Writer // deployed address and transfer confirmation only
	errOut      io.Writer // prompt, preview, spinner and hints
	keys        wallet.KeyStore
	interactive bool
}

var deployOpts deployFlags

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the IDO contract and optionally hand over ownership",
	Long: `Deploy the IDO contract with the parameters under "ido" in the settings file.

After the deployment is mined its address is printed. When ido.new_owner is
set you are asked whether to transfer ownership: press enter to transfer,
type anything else to keep ownership with the deployer.

The deployer key is read from the keyring entry named by networks.<name>.key
(see: idodeploy key import <network>) or from IDO_DEPLOYER_KEY.`,
	Example: `  idodeploy deploy --network harmony-testnet
  idodeploy deploy --network harmony --answer ""     # transfer without asking
  idodeploy deploy --network harmony --answer skip   # never transfer`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		keysDir, err := keystoreDir()
		if err != nil {
			return err
		}
		flags := deployOpts
		flags.answerSet = cmd.Flags().Changed("answer")
		return runDeploy(cmd.Context(), s, flags, deployEnv{
			in:          cmd.InOrStdin(),
			out:         cmd.OutOrStdout(),
			errOut:      cmd.ErrOrStderr(),
			keys:        wallet.DefaultKeystore(keysDir),
			interactive: ui.IsTerminal(os.Stdin) && ui.IsTerminal(os.Stderr),
		})
	},
}

func runDeploy(ctx context.Context, s *config.Settings, f deployFlags, env deployEnv) error {
	var errs *multierror.Error
	if err := s.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	params, err := s.Parameters()
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	name, network, err := s.ResolveNetwork(f.network)
	if errors.Is(err, config.ErrNetworkRequired) && env.interactive {
		name, network, err = pickNetwork(s, env)
	}
	if err != nil {
		if errors.Is(err, config.ErrNetworkRequired) {
			return fmt.Errorf("%w: pass --network (one of %v) or set default_network", err, s.NetworkNames())
		}
		return err
	}

	artifactPath := s.ArtifactPath()
	if f.artifact != "" {
		artifactPath = s.Resolve(f.artifact)
	}
	artifact, err := contract.LoadArtifact(artifactPath)
	if err != nil {
		return fmt.Errorf("loading artifact: %w\n  Build it with: idodeploy build", err)
	}
	if err := checkArtifact(artifact, params); err != nil {
		return err
	}

	urls := network.RPCs
	if f.rpc != "" {
		urls = []string{f.rpc}
	}
	selectCtx, cancel := context.WithTimeout(ctx, config.RPCSelectTimeout)
	rpcURL, err := rpc.Select(selectCtx, urls, rpc.Algorithm(s.RPCAlgorithm), network.ChainID, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("selecting RPC for %s: %w", name, err)
	}

	ref := network.Key
	if ref == "" {
		ref = wallet.Ref(name)
	}
	signer, err := wallet.LoadSigner(env.keys, ref)
	if err != nil {
		return fmt.Errorf("loading deployer key for %s: %w\n  Import one with: idodeploy key import %s", name, err, name)
	}

	deployer, err := chain.NewDeployer(chain.NewEVMClient(rpcURL), signer, artifact,
		chain.WithTimeouts(s.Timeouts.Deploy, s.Timeouts.Transfer),
		chain.WithExpectedChainID(network.ChainID),
		chain.WithDeployerLogger(logger),
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(env.errOut, deployPreview(name, network, rpcURL, signer.Address(), artifact, params))

	var confirm ido.Confirmer = ui.NewLineConfirmer(env.in, env.errOut)
	if f.answerSet {
		confirm = ido.NewScriptedConfirmer(f.answer)
	}
	var factory ido.Factory = deployer
	if env.interactive {
		factory = spinningFactory{Factory: deployer, w: env.errOut}
	}

	res := ido.NewOrchestrator(params, factory, confirm,
		ido.WithOutput(env.out),
		ido.WithLogger(logger),
	).Run(ctx)

	if res.Deployed {
		if err := recordDeployment(s, name, deployer, artifact, params, res); err != nil {
			logger.Warn("could not record deployment", slog.String("file", s.DeploymentsPath()), slog.String("err", err.Error()))
		} else {
			fmt.Fprintln(env.errOut, ui.Hint("Recorded in "+s.DeploymentsPath()))
		}
	}
	return res.Err
}

func pickNetwork(s *config.Settings, env deployEnv) (string, config.Network, error) {
	names := s.NetworkNames()
	items := make([]ui.PickerItem, 0, len(names))
	for _, n := range names {
		net := s.Networks[n]
		sub := fmt.Sprintf("%d rpc", len(net.RPCs))
		if net.ChainID != 0 {
			sub = "chain " + strconv.FormatInt(net.ChainID, 10) + " · " + sub
		}
		items = append(items, ui.PickerItem{Label: n, SubLabel: sub, Value: n})
	}
	picked, err := ui.PickItem(env.in, env.errOut, "Deploy to which network?", items)
	if err != nil {
		return "", config.Network{}, err
	}
	return s.ResolveNetwork(picked)
}

// transferOwnershipSelector is the selector of Ownable.transferOwnership(address).
const transferOwnershipSelector = "0xf2fde38b"

// checkArtifact logs what is about to be deployed and rejects an artifact
// that could not hand over ownership, before any transaction is sent.
func checkArtifact(a *contract.Artifact, params *ido.Parameters) error {
	attrs := []any{slog.String("contract", a.ContractName), slog.Int("bytecode_bytes", len(a.Bytecode))}
	if c := contract.Constructor(a.ABI); c != nil {
		attrs = append(attrs, slog.String("constructor", c.Signature()))
	}
	logger.Debug("artifact loaded", attrs...)

	if !params.HasNewOwner() {
		return nil
	}
	fn := contract.FindFunction(a.ABI, "transferOwnership")
	if fn == nil || fn.Selector() != transferOwnershipSelector {
		return fmt.Errorf("%s ABI has no transferOwnership(address); clear ido.new_owner or rebuild the contract", a.ContractName)
	}
	return nil
}

func deployPreview(name string, n config.Network, rpcURL string, from common.Address, a *contract.Artifact, p *ido.Parameters) string {
	owner := "deployer (no new_owner set)"
	if p.HasNewOwner() {
		owner = ui.Addr(p.NewOwner.Hex())
	}
	pairs := [][2]string{{"Network", ui.NetworkName(name)}}
	if n.ChainID != 0 {
		pairs = append(pairs, [2]string{"Chain ID", strconv.FormatInt(n.ChainID, 10)})
	}
	pairs = append(pairs, [][2]string{
		{"RPC", rpcURL},
		{"Deployer", ui.Addr(from.Hex())},
		{"Contract", a.ContractName},
		{"Token", ui.Addr(p.Token.Hex())},
		{"Sale window", p.BuyingStartsAt.String() + " → " + p.BuyingEndsAt.String()},
		{"Vesting", p.VestingStartsAt.String() + " → " + p.VestingEndsAt.String()},
		{"New owner", owner},
	}...)
	return ui.KeyValueBlock("IDO Deployment", pairs)
}

func recordDeployment(s *config.Settings, name string, d *chain.Deployer, a *contract.Artifact, p *ido.Parameters, res ido.Result) error {
	reg := contract.NewRegistry(s.DeploymentsPath())
	if err := reg.Load(); err != nil {
		return err
	}

	dep := &contract.Deployment{
		Contract:             a.ContractName,
		Network:              name,
		Address:              res.Address.Hex(),
		TxHash:               res.TxHash.Hex(),
		Deployer:             d.From().Hex(),
		OwnershipTransferred: res.Transferred,
	}
	if dep.Contract == "" {
		dep.Contract = "IDO"
	}
	if id := d.ChainID(); id != nil {
		dep.ChainID = id.Int64()
	}
	if p.HasNewOwner() {
		dep.NewOwner = p.NewOwner.Hex()
	}
	if rel, err := filepath.Rel(s.Dir(), a.Path); err == nil {
		dep.Artifact = filepath.ToSlash(rel)
	}
	reg.Add(dep)
	return reg.Save()
}

// keystoreDir is where the file keyring backend keeps its entries.
func keystoreDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine config dir: %w", err)
	}
	return filepath.Join(dir, "idodeploy"), nil
}

// spinningFactory shows a spinner while transactions are being mined.
type spinningFactory struct {
	ido.Factory
	w io.Writer
}

func (f spinningFactory) Deploy(ctx context.Context, args ...any) (ido.Contract, error) {
	sp := ui.NewSpinner(f.w, "Waiting for the deployment to be mined...")
	sp.Start()
	c, err := f.Factory.Deploy(ctx, args...)
	sp.Stop()
	if err != nil {
		return nil, err
	}
	return spinningContract{Contract: c, w: f.w}, nil
}

type spinningContract struct {
	ido.Contract
	w io.Writer
}

func (c spinningContract) TransferOwnership(ctx context.Context, newOwner common.Address) error {
	sp := ui.NewSpinner(c.w, "Transferring ownership...")
	sp.Start()
	defer sp.Stop()
	return c.Contract.TransferOwnership(ctx, newOwner)
}

func init() {
	deployCmd.Flags().StringVarP(&deployOpts.network, "network", "n", "", "network from the settings file")
	deployCmd.Flags().StringVar(&deployOpts.artifact, "artifact", "", "artifact JSON (default: artifact setting)")
	deployCmd.Flags().StringVar(&deployOpts.rpc, "rpc", "", "use this RPC URL instead of the network's list")
	deployCmd.Flags().StringVar(&deployOpts.answer, "answer", "", `answer the ownership prompt non-interactively ("" transfers)`)
}
