package ido

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
)

// Factory deploys a new IDO contract from its constructor arguments and
// blocks until the deployment transaction is confirmed.
type Factory interface {
	Deploy(ctx context.Context, args ...any) (Contract, error)
}

// Contract is a handle to a deployed IDO contract.
type Contract interface {
	Address() common.Address
	TxHash() common.Hash
	TransferOwnership(ctx context.Context, newOwner common.Address) error
}

// Confirmer asks the operator a question and returns the raw answer with
// the line terminator removed.
type Confirmer interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Result is the outcome of one orchestrator run.
type Result struct {
	Address     common.Address
	TxHash      common.Hash
	Deployed    bool
	Transferred bool
	Err         error
}

// ExitCode maps the result to a process exit status.
func (r Result) ExitCode() int {
	if r.Err != nil {
		return 1
	}
	return 0
}

// TransferPrompt is the question shown before an ownership transfer.
func TransferPrompt(newOwner common.Address) string {
	return fmt.Sprintf("Would you like to transfer ownership to address %s as specified in the config? Press enter to ignore: ", newOwner.Hex())
}

// Orchestrator runs the deploy → report → optional ownership transfer flow.
type Orchestrator struct {
	params  *Parameters
	factory Factory
	confirm Confirmer
	out     io.Writer
	logger  *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithOutput sets where the deployed address and transfer confirmation are written.
func WithOutput(w io.Writer) Option {
	return func(o *Orchestrator) { o.out = w }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator creates an Orchestrator. Output is discarded unless WithOutput is given.
func NewOrchestrator(params *Parameters, factory Factory, confirm Confirmer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		params:  params,
		factory: factory,
		confirm: confirm,
		out:     io.Discard,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run deploys the contract and, when a new owner is configured and the
// operator answers the prompt with an empty line, transfers ownership.
// Any non-empty answer skips the transfer.
func (o *Orchestrator) Run(ctx context.Context) Result {
	var res Result

	o.logger.Info("deploying IDO contract",
		slog.String("token", o.params.Token.Hex()),
		slog.String("collateral_token", o.params.CollateralToken.Hex()),
		slog.String("buying_starts_at", o.params.BuyingStartsAt.String()),
		slog.String("buying_ends_at", o.params.BuyingEndsAt.String()),
		slog.String("vesting_starts_at", o.params.VestingStartsAt.String()),
		slog.String("vesting_ends_at", o.params.VestingEndsAt.String()),
	)

	c, err := o.factory.Deploy(ctx, o.params.ConstructorArgs()...)
	if err != nil {
		res.Err = fmt.Errorf("deploying IDO contract: %w", err)
		return res
	}
	res.Deployed = true
	res.Address = c.Address()
	res.TxHash = c.TxHash()
	o.logger.Info("deployed", slog.String("address", res.Address.Hex()), slog.String("tx", res.TxHash.Hex()))

	fmt.Fprintf(o.out, "IDO contract deployed to: %s\n", res.Address.Hex())

	if !o.params.HasNewOwner() {
		o.logger.Debug("no new owner configured, ownership stays with deployer")
		return res
	}

	answer, err := o.confirm.Ask(ctx, TransferPrompt(o.params.NewOwner))
	if err != nil {
		res.Err = fmt.Errorf("reading ownership confirmation: %w", err)
		return res
	}
	if answer != "" {
		o.logger.Info("ownership transfer skipped by operator")
		return res
	}

	o.logger.Info("ownership transfer", slog.String("new_owner", o.params.NewOwner.Hex()))
	if err := c.TransferOwnership(ctx, o.params.NewOwner); err != nil {
		res.Err = fmt.Errorf("transferring ownership to %s: %w", o.params.NewOwner.Hex(), err)
		return res
	}
	res.Transferred = true

	fmt.Fprintln(o.out, "Ownership transferred.")
	return res
}
