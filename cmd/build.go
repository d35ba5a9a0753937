package cmd

import (
	"fmt"
	"io"

	"github.com/Mohsinsiddi/idodeploy/internal/build"
	"github.com/Mohsinsiddi/idodeploy/internal/config"
	"github.com/Mohsinsiddi/idodeploy/internal/ui"
	"github.com/spf13/cobra"
)

var (
	buildSolc     string
	flattenOut    string
	flattenSource string
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"compileandflatten"},
	Short:   "Compile the contracts, then flatten the IDO contract",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		seq := build.NewSequence("compileandflatten", logger,
			compileTask(s),
			flattenTask(s, cmd.OutOrStdout()),
		)
		if err := seq.Run(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Success("Build complete: "+s.Resolve(s.Solidity.FlattenOut)))
		return nil
	},
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile the contracts with the pinned solc version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		if err := compileTask(s).Run(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Success("Artifacts written to "+s.Resolve(s.Solidity.Artifacts)))
		return nil
	},
}

var flattenCmd = &cobra.Command{
	Use:   "flatten [contract]",
	Short: "Inline a contract and its imports into one file",
	Long: `Inline a contract and its imports into one file, dependencies first.

Without arguments the contract and output file come from the solidity
section of the settings file. Use --out - to write to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			flattenSource = args[0]
		}
		return flattenTask(s, cmd.OutOrStdout()).Run(cmd.Context())
	},
}

func compileTask(s *config.Settings) *build.CompileTask {
	solc := s.Solidity.Solc
	if buildSolc != "" {
		solc = buildSolc
	}
	return build.NewCompileTask(build.CompileOptions{
		Root:      s.Dir(),
		Solc:      solc,
		CacheDir:  s.Resolve(s.Solidity.CacheDir),
		Version:   s.Solidity.Version,
		Sources:   s.Solidity.Sources,
		Artifacts: s.Solidity.Artifacts,
		Optimizer: s.Solidity.Optimizer,
		Runs:      s.Solidity.Runs,
	}, logger)
}

func flattenTask(s *config.Settings, stdout io.Writer) *build.FlattenTask {
	opts := build.FlattenOptions{
		Root:     s.Dir(),
		Contract: s.Solidity.Contract,
		Out:      s.Solidity.FlattenOut,
		Stdout:   stdout,
	}
	if flattenSource != "" {
		opts.Contract = flattenSource
	}
	if flattenOut != "" {
		opts.Out = flattenOut
	}
	return build.NewFlattenTask(opts, logger)
}

func init() {
	for _, c := range []*cobra.Command{buildCmd, compileCmd} {
		c.Flags().StringVar(&buildSolc, "solc", "", "solc binary (default: solidity.solc, else the pinned version from the compiler cache)")
	}
	for _, c := range []*cobra.Command{buildCmd, flattenCmd} {
		c.Flags().StringVarP(&flattenOut, "out", "o", "", "flattened output file, - for stdout (default: solidity.flatten_out)")
	}
}
