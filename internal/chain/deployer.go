package chain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/Mohsinsiddi/idodeploy/internal/config"
	"github.com/Mohsinsiddi/idodeploy/internal/contract"
	"github.com/Mohsinsiddi/idodeploy/internal/ido"
	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxSigner signs transactions for a single account.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) ([]byte, error)
}

// Deployer creates contract instances from a compiled artifact and sends
// follow-up calls to them. It implements ido.Factory.
type Deployer struct {
	client   *EVMClient
	signer   TxSigner
	artifact *contract.Artifact
	abi      gethabi.ABI
	logger   *slog.Logger

	expectedChainID *big.Int
	chainID         *big.Int

	deployTimeout   time.Duration
	transferTimeout time.Duration
	pollInterval    time.Duration
}

var (
	_ ido.Factory  = (*Deployer)(nil)
	_ ido.Contract = (*DeployedContract)(nil)
)

// DeployerOption configures a Deployer.
type DeployerOption func(*Deployer)

// WithTimeouts bounds the receipt waits of the deployment and of later calls.
func WithTimeouts(deploy, transfer time.Duration) DeployerOption {
	return func(d *Deployer) {
		d.deployTimeout = deploy
		d.transferTimeout = transfer
	}
}

// WithPollInterval sets how often receipts are polled.
func WithPollInterval(interval time.Duration) DeployerOption {
	return func(d *Deployer) { d.pollInterval = interval }
}

// WithExpectedChainID makes every send fail if the node reports another chain.
func WithExpectedChainID(id int64) DeployerOption {
	return func(d *Deployer) {
		if id != 0 {
			d.expectedChainID = big.NewInt(id)
		}
	}
}

// WithDeployerLogger sets the diagnostic logger.
func WithDeployerLogger(l *slog.Logger) DeployerOption {
	return func(d *Deployer) { d.logger = l }
}

// NewDeployer creates a Deployer for artifact.
func NewDeployer(client *EVMClient, signer TxSigner, artifact *contract.Artifact, opts ...DeployerOption) (*Deployer, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return nil, err
	}
	d := &Deployer{
		client:          client,
		signer:          signer,
		artifact:        artifact,
		abi:             parsed,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		deployTimeout:   config.TxDeployTimeout,
		transferTimeout: config.TxConfirmTimeout,
		pollInterval:    config.ReceiptPollInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// PackConstructor ABI-encodes args for the artifact's constructor. Integer
// arguments given as *big.Int are narrowed to the declared width.
func (d *Deployer) PackConstructor(args ...any) ([]byte, error) {
	inputs := d.abi.Constructor.Inputs
	if len(inputs) != len(args) {
		return nil, fmt.Errorf("constructor takes %d arguments, got %d", len(inputs), len(args))
	}
	coerced := make([]any, len(args))
	for i, in := range inputs {
		v, err := coerceArg(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("constructor argument %d (%s %s): %w", i, in.Type.String(), in.Name, err)
		}
		coerced[i] = v
	}
	packed, err := d.abi.Pack("", coerced...)
	if err != nil {
		return nil, fmt.Errorf("encoding constructor arguments: %w", err)
	}
	return packed, nil
}

// Deploy sends the creation transaction and waits until the contract code is
// on chain.
func (d *Deployer) Deploy(ctx context.Context, args ...any) (ido.Contract, error) {
	packed, err := d.PackConstructor(args...)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(d.artifact.Bytecode)+len(packed))
	data = append(data, d.artifact.Bytecode...)
	data = append(data, packed...)

	hash, err := d.send(ctx, nil, data, config.GasLimitIDODeploy)
	if err != nil {
		return nil, err
	}
	d.logger.Info("deployment sent", slog.String("tx", hash.Hex()))

	receipt, err := d.client.WaitForReceipt(ctx, hash, d.deployTimeout, d.pollInterval)
	if err != nil {
		return nil, fmt.Errorf("deploy tx %s: %w", hash.Hex(), err)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("deploy tx %s: receipt has no contract address", hash.Hex())
	}

	code, err := d.client.GetCode(ctx, receipt.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("checking code at %s: %w", receipt.ContractAddress.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("no contract code at %s after deployment", receipt.ContractAddress.Hex())
	}

	d.logger.Debug("deployment mined",
		slog.Uint64("block", receipt.BlockNumber),
		slog.Uint64("gas_used", receipt.GasUsed),
	)
	return &DeployedContract{deployer: d, receipt: receipt}, nil
}

// From returns the address transactions are sent from.
func (d *Deployer) From() common.Address { return d.signer.Address() }

// ChainID returns the chain the first transaction was sent on, or nil before that.
func (d *Deployer) ChainID() *big.Int { return d.chainID }

// send signs and broadcasts a transaction. Chains without a base fee get a
// legacy transaction, others EIP-1559. A nil to creates a contract.
func (d *Deployer) send(ctx context.Context, to *common.Address, data []byte, fallbackGas uint64) (common.Hash, error) {
	from := d.signer.Address()

	chainID, err := d.resolveChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	gasPrice, err := d.client.GasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting gas price: %w", err)
	}
	nonce, err := d.client.PendingNonce(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting nonce: %w", err)
	}
	gas, err := d.client.EstimateGas(ctx, from, to, data)
	if err != nil {
		d.logger.Warn("gas estimation failed, using fallback limit",
			slog.Uint64("gas", fallbackGas), slog.String("err", err.Error()))
		gas = fallbackGas
	}

	baseFee, err := d.client.BaseFee(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("getting latest block: %w", err)
	}

	var tx *types.Transaction
	if baseFee == nil {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       to,
			Value:    big.NewInt(0),
			Data:     data,
		})
	} else {
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: gasPrice,
			GasFeeCap: new(big.Int).Mul(gasPrice, big.NewInt(2)),
			Gas:       gas,
			To:        to,
			Value:     big.NewInt(0),
			Data:      data,
		})
	}

	raw, err := d.signer.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing transaction: %w", err)
	}
	hash, err := d.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("broadcasting transaction: %w", err)
	}
	return hash, nil
}

func (d *Deployer) resolveChainID(ctx context.Context) (*big.Int, error) {
	if d.chainID != nil {
		return d.chainID, nil
	}
	id, err := d.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting chain id: %w", err)
	}
	if d.expectedChainID != nil && id.Cmp(d.expectedChainID) != 0 {
		return nil, fmt.Errorf("chain ID mismatch: expected %s, got %s", d.expectedChainID, id)
	}
	d.chainID = id
	return id, nil
}

// DeployedContract is a contract created by a Deployer.
type DeployedContract struct {
	deployer *Deployer
	receipt  *TxReceipt
}

// Address returns the contract address.
func (c *DeployedContract) Address() common.Address { return c.receipt.ContractAddress }

// TxHash returns the creation transaction hash.
func (c *DeployedContract) TxHash() common.Hash { return c.receipt.Hash }

// TransferOwnership calls transferOwnership(newOwner) and waits for it to be mined.
func (c *DeployedContract) TransferOwnership(ctx context.Context, newOwner common.Address) error {
	d := c.deployer
	if _, ok := d.abi.Methods["transferOwnership"]; !ok {
		return fmt.Errorf("%s ABI has no transferOwnership", d.artifact.ContractName)
	}
	data, err := d.abi.Pack("transferOwnership", newOwner)
	if err != nil {
		return fmt.Errorf("encoding transferOwnership: %w", err)
	}

	addr := c.Address()
	hash, err := d.send(ctx, &addr, data, config.GasLimitContractCall)
	if err != nil {
		return err
	}
	d.logger.Info("ownership transfer sent", slog.String("tx", hash.Hex()))

	if _, err := d.client.WaitForReceipt(ctx, hash, d.transferTimeout, d.pollInterval); err != nil {
		return fmt.Errorf("transferOwnership tx %s: %w", hash.Hex(), err)
	}
	return nil
}

// coerceArg converts v to the Go type go-ethereum expects for t.
func coerceArg(t gethabi.Type, v any) (any, error) {
	switch t.T {
	case gethabi.AddressTy:
		switch x := v.(type) {
		case common.Address:
			return x, nil
		case string:
			if !common.IsHexAddress(x) {
				return nil, fmt.Errorf("not a hex address: %q", x)
			}
			return common.HexToAddress(x), nil
		}
	case gethabi.UintTy, gethabi.IntTy:
		if n, ok := v.(*big.Int); ok {
			return fitInteger(t, n)
		}
	}
	return v, nil
}

// fitInteger narrows n to the native type used for t's width, or keeps
// *big.Int for widths go-ethereum represents that way.
func fitInteger(t gethabi.Type, n *big.Int) (any, error) {
	if n == nil {
		return nil, fmt.Errorf("missing value")
	}
	if t.T == gethabi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s does not fit in %s", n, t.String())
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		}
		return n, nil
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
		return nil, fmt.Errorf("%s does not fit in %s", n, t.String())
	}
	switch t.Size {
	case 8:
		return int8(n.Int64()), nil
	case 16:
		return int16(n.Int64()), nil
	case 32:
		return int32(n.Int64()), nil
	case 64:
		return n.Int64(), nil
	}
	return n, nil
}
