package ido

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/hashicorp/go-multierror"
)

// ErrInvalidParameters wraps every validation failure returned by NewParameters.
var ErrInvalidParameters = errors.New("invalid IDO parameters")

// Config is the raw, human-written form of the deployment parameters as it
// appears under the "ido" key of the settings file. Amounts are strings so
// that values above 2^64 survive YAML and env decoding.
type Config struct {
	Token                  string `mapstructure:"token"                     yaml:"token"`
	TokensForSale          string `mapstructure:"tokens_for_sale"           yaml:"tokens_for_sale"`
	CollateralToken        string `mapstructure:"collateral_token"          yaml:"collateral_token"`
	CollateralRequired     string `mapstructure:"collateral_required"       yaml:"collateral_required"`
	ONEToRaise             string `mapstructure:"one_to_raise"              yaml:"one_to_raise"`
	BuyingStartsAt         string `mapstructure:"buying_starts_at"          yaml:"buying_starts_at"`
	BuyingEndsAt           string `mapstructure:"buying_ends_at"            yaml:"buying_ends_at"`
	VestingStartsAt        string `mapstructure:"vesting_starts_at"         yaml:"vesting_starts_at"`
	VestingEndsAt          string `mapstructure:"vesting_ends_at"           yaml:"vesting_ends_at"`
	TimeToClaim            string `mapstructure:"time_to_claim"             yaml:"time_to_claim"`
	MaximumTokensPerWallet string `mapstructure:"maximum_tokens_per_wallet" yaml:"maximum_tokens_per_wallet"`
	NewOwner               string `mapstructure:"new_owner"                 yaml:"new_owner"`
}

// Parameters are the normalized constructor inputs of the IDO contract.
// A Parameters value is never modified after NewParameters returns it.
type Parameters struct {
	Token                  common.Address
	TokensForSale          *big.Int
	CollateralToken        common.Address
	CollateralRequired     *big.Int
	ONEToRaise             *big.Int
	BuyingStartsAt         *big.Int
	BuyingEndsAt           *big.Int
	VestingStartsAt        *big.Int
	VestingEndsAt          *big.Int
	TimeToClaim            *big.Int
	MaximumTokensPerWallet *big.Int
	NewOwner               common.Address
}

// NewParameters validates cfg and converts it into Parameters. All problems
// are reported together. Timestamp ordering is left to the contract.
func NewParameters(cfg Config) (*Parameters, error) {
	var (
		p    Parameters
		errs *multierror.Error
	)
	collect := func(field string, err error) {
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	var err error
	p.Token, err = parseAddress(cfg.Token)
	collect("token", err)
	p.TokensForSale, err = parseUint(cfg.TokensForSale)
	collect("tokens_for_sale", err)
	p.CollateralToken, err = parseAddress(cfg.CollateralToken)
	collect("collateral_token", err)
	p.CollateralRequired, err = parseUint(cfg.CollateralRequired)
	collect("collateral_required", err)
	p.ONEToRaise, err = parseUint(cfg.ONEToRaise)
	collect("one_to_raise", err)
	p.BuyingStartsAt, err = NormalizeDate(cfg.BuyingStartsAt)
	collect("buying_starts_at", err)
	p.BuyingEndsAt, err = NormalizeDate(cfg.BuyingEndsAt)
	collect("buying_ends_at", err)
	p.VestingStartsAt, err = NormalizeDate(cfg.VestingStartsAt)
	collect("vesting_starts_at", err)
	p.VestingEndsAt, err = NormalizeDate(cfg.VestingEndsAt)
	collect("vesting_ends_at", err)
	p.TimeToClaim, err = parseSeconds(cfg.TimeToClaim)
	collect("time_to_claim", err)
	p.MaximumTokensPerWallet, err = parseUint(cfg.MaximumTokensPerWallet)
	collect("maximum_tokens_per_wallet", err)

	if strings.TrimSpace(cfg.NewOwner) != "" {
		p.NewOwner, err = parseAddress(cfg.NewOwner)
		collect("new_owner", err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}
	return &p, nil
}

// HasNewOwner reports whether a post-deploy owner is configured.
func (p *Parameters) HasNewOwner() bool {
	return p.NewOwner != (common.Address{})
}

// ConstructorArgs returns the eleven constructor arguments in declaration order.
func (p *Parameters) ConstructorArgs() []any {
	return []any{
		p.Token,
		p.TokensForSale,
		p.CollateralToken,
		p.CollateralRequired,
		p.ONEToRaise,
		p.BuyingStartsAt,
		p.BuyingEndsAt,
		p.VestingStartsAt,
		p.VestingEndsAt,
		p.TimeToClaim,
		p.MaximumTokensPerWallet,
	}
}

// ConstructorArgNames lists the constructor parameter names, aligned with ConstructorArgs.
var ConstructorArgNames = []string{
	"token",
	"tokensForSale",
	"collateralToken",
	"collateralRequired",
	"ONEToRaise",
	"buyingStartsAt",
	"buyingEndsAt",
	"vestingStartsAt",
	"vestingEndsAt",
	"timeToClaim",
	"maximumTokensPerWallet",
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, fmt.Errorf("missing address")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("not a hex address: %q", s)
	}
	return common.HexToAddress(s), nil
}

// parseUint accepts decimal or 0x-prefixed hex and rejects negatives and
// values wider than 256 bits.
func parseUint(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("missing value")
	}
	n, ok := math.ParseBig256(strings.ReplaceAll(s, "_", ""))
	if !ok {
		return nil, fmt.Errorf("not an unsigned 256-bit integer: %q", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("must not be negative: %q", s)
	}
	return n, nil
}

// parseSeconds accepts an integer number of seconds or a Go duration string.
func parseSeconds(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if n, err := parseUint(s); err == nil || s == "" {
		return n, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("want seconds or a duration like 72h: %q", s)
	}
	if d < 0 {
		return nil, fmt.Errorf("must not be negative: %q", s)
	}
	if d%time.Second != 0 {
		return nil, fmt.Errorf("must be a whole number of seconds: %q", s)
	}
	return big.NewInt(int64(d / time.Second)), nil
}
