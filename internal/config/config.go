package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/Mohsinsiddi/idodeploy/internal/ido"
	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-version"
	"github.com/spf13/viper"
)

const (
	defaultAlgorithm   = "fastest"
	defaultArtifact    = "artifacts/contracts/IDO.sol/IDO.json"
	defaultSources     = "contracts"
	defaultArtifacts   = "artifacts"
	defaultFlattenOut  = "flattened/IDO.sol"
	defaultContract    = "contracts/IDO.sol"
	defaultDeployments = "deployments.json"

	// DefaultConfigFile is looked up in the working directory when no
	// --config flag is given.
	DefaultConfigFile = "ido.yaml"

	envPrefix = "IDO"
)

// ErrNetworkRequired is returned when no network can be chosen without asking.
var ErrNetworkRequired = errors.New("no network selected")

// Algorithms lists the accepted rpc_algorithm values.
var Algorithms = []string{"fastest", "round-robin", "failover"}

// Settings is the effective configuration after the file, IDO_* environment
// variables and defaults are merged.
type Settings struct {
	IDO            ido.Config         `mapstructure:"ido"             yaml:"ido"`
	DefaultNetwork string             `mapstructure:"default_network" yaml:"default_network"`
	RPCAlgorithm   string             `mapstructure:"rpc_algorithm"   yaml:"rpc_algorithm"` // "fastest" | "round-robin" | "failover"
	Artifact       string             `mapstructure:"artifact"        yaml:"artifact"`
	Deployments    string             `mapstructure:"deployments"     yaml:"deployments"`
	Networks       map[string]Network `mapstructure:"networks"        yaml:"networks"`
	Solidity       Solidity           `mapstructure:"solidity"        yaml:"solidity"`
	Timeouts       Timeouts           `mapstructure:"timeouts"        yaml:"timeouts"`

	// internal: file the settings were read from, empty when none was found
	path string
	dir  string
}

// Network is one chain the contract can be deployed to.
type Network struct {
	RPCs    []string `mapstructure:"rpcs"     yaml:"rpcs"`
	ChainID int64    `mapstructure:"chain_id" yaml:"chain_id,omitempty"`
	Key     string   `mapstructure:"key"      yaml:"key,omitempty"` // keyring reference
}

// Solidity configures the build pipeline.
type Solidity struct {
	Version    string `mapstructure:"version"     yaml:"version"`
	Solc       string `mapstructure:"solc"        yaml:"solc,omitempty"`
	CacheDir   string `mapstructure:"cache_dir"   yaml:"cache_dir,omitempty"`
	Sources    string `mapstructure:"sources"     yaml:"sources"`
	Artifacts  string `mapstructure:"artifacts"   yaml:"artifacts"`
	Contract   string `mapstructure:"contract"    yaml:"contract"`
	FlattenOut string `mapstructure:"flatten_out" yaml:"flatten_out"`
	Optimizer  bool   `mapstructure:"optimizer"   yaml:"optimizer"`
	Runs       int    `mapstructure:"runs"        yaml:"runs"`
}

// Timeouts bound the receipt waits.
type Timeouts struct {
	Deploy   time.Duration `mapstructure:"deploy"   yaml:"deploy"`
	Transfer time.Duration `mapstructure:"transfer" yaml:"transfer"`
}

// MarshalYAML writes the timeouts as duration strings such as 5m0s.
func (t Timeouts) MarshalYAML() (any, error) {
	return struct {
		Deploy   string `yaml:"deploy"`
		Transfer string `yaml:"transfer"`
	}{t.Deploy.String(), t.Transfer.String()}, nil
}

// idoEnv maps each deployment parameter key to a short env variable.
var idoEnv = map[string]string{
	"ido.token":                     "IDO_TOKEN",
	"ido.tokens_for_sale":           "IDO_TOKENS_FOR_SALE",
	"ido.collateral_token":          "IDO_COLLATERAL_TOKEN",
	"ido.collateral_required":       "IDO_COLLATERAL_REQUIRED",
	"ido.one_to_raise":              "IDO_ONE_TO_RAISE",
	"ido.buying_starts_at":          "IDO_BUYING_STARTS_AT",
	"ido.buying_ends_at":            "IDO_BUYING_ENDS_AT",
	"ido.vesting_starts_at":         "IDO_VESTING_STARTS_AT",
	"ido.vesting_ends_at":           "IDO_VESTING_ENDS_AT",
	"ido.time_to_claim":             "IDO_TIME_TO_CLAIM",
	"ido.maximum_tokens_per_wallet": "IDO_MAXIMUM_TOKENS_PER_WALLET",
	"ido.new_owner":                 "IDO_NEW_OWNER",
}

// Load reads settings from path. An empty path looks for ido.yaml in the
// working directory and falls back to defaults when it does not exist; an
// explicit path must exist.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range idoEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	v.SetConfigFile(path)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)):
			found = false
		default:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if s.Networks == nil {
		s.Networks = make(map[string]Network)
	}

	if found {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		s.path = abs
		s.dir = filepath.Dir(abs)
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not determine working dir: %w", err)
		}
		s.dir = wd
	}
	return &s, nil
}

// decodeHook keeps viper's duration and list conversions and turns YAML
// timestamps back into strings for the ido date fields.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		timeToStringHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func timeToStringHook(_, to reflect.Type, data any) (any, error) {
	t, ok := data.(time.Time)
	if !ok || to.Kind() != reflect.String {
		return data, nil
	}
	return t.Format(time.RFC3339Nano), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_algorithm", defaultAlgorithm)
	v.SetDefault("default_network", "")
	v.SetDefault("artifact", defaultArtifact)
	v.SetDefault("deployments", defaultDeployments)
	v.SetDefault("solidity.version", DefaultSolcVersion)
	v.SetDefault("solidity.solc", "")
	v.SetDefault("solidity.cache_dir", "")
	v.SetDefault("solidity.sources", defaultSources)
	v.SetDefault("solidity.artifacts", defaultArtifacts)
	v.SetDefault("solidity.contract", defaultContract)
	v.SetDefault("solidity.flatten_out", defaultFlattenOut)
	v.SetDefault("solidity.optimizer", false)
	v.SetDefault("solidity.runs", 200)
	v.SetDefault("timeouts.deploy", TxDeployTimeout)
	v.SetDefault("timeouts.transfer", TxConfirmTimeout)
	// Unmarshal only sees keys viper knows about, so register every
	// deployment parameter for env overrides to apply.
	for key := range idoEnv {
		v.SetDefault(key, "")
	}
}

// Path returns the file the settings were read from, or "" if none.
func (s *Settings) Path() string { return s.path }

// Dir returns the directory relative paths are resolved against.
func (s *Settings) Dir() string { return s.dir }

// Resolve makes p absolute relative to the config directory.
func (s *Settings) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.dir, p)
}

// ArtifactPath returns the absolute path of the contract artifact.
func (s *Settings) ArtifactPath() string { return s.Resolve(s.Artifact) }

// DeploymentsPath returns the absolute path of the deployment record file.
func (s *Settings) DeploymentsPath() string { return s.Resolve(s.Deployments) }

// NetworkNames returns the configured network names in sorted order.
func (s *Settings) NetworkNames() []string {
	names := make([]string, 0, len(s.Networks))
	for name := range s.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveNetwork picks the network to use: name if given, else
// default_network, else the only configured network. ErrNetworkRequired means
// the caller has to ask.
func (s *Settings) ResolveNetwork(name string) (string, Network, error) {
	if name == "" {
		name = s.DefaultNetwork
	}
	if name == "" {
		switch len(s.Networks) {
		case 0:
			return "", Network{}, fmt.Errorf("no networks configured in %s", s.displayPath())
		case 1:
			name = s.NetworkNames()[0]
		default:
			return "", Network{}, ErrNetworkRequired
		}
	}
	n, ok := s.Networks[name]
	if !ok {
		return "", Network{}, fmt.Errorf("unknown network %q (configured: %s)", name, strings.Join(s.NetworkNames(), ", "))
	}
	if len(n.RPCs) == 0 {
		return "", Network{}, fmt.Errorf("network %q has no rpcs", name)
	}
	return name, n, nil
}

// Parameters validates the ido section and returns the deployment parameters.
func (s *Settings) Parameters() (*ido.Parameters, error) {
	return ido.NewParameters(s.IDO)
}

// Validate checks everything outside the ido section and reports all
// problems at once.
func (s *Settings) Validate() error {
	var errs *multierror.Error

	if !slices.Contains(Algorithms, s.RPCAlgorithm) {
		errs = multierror.Append(errs, fmt.Errorf("rpc_algorithm: %q is not one of %s", s.RPCAlgorithm, strings.Join(Algorithms, ", ")))
	}
	if _, err := version.NewVersion(s.Solidity.Version); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("solidity.version: %w", err))
	}
	if s.Timeouts.Deploy <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("timeouts.deploy: must be positive"))
	}
	if s.Timeouts.Transfer <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("timeouts.transfer: must be positive"))
	}
	if s.DefaultNetwork != "" {
		if _, ok := s.Networks[s.DefaultNetwork]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("default_network: %q is not configured", s.DefaultNetwork))
		}
	}
	for _, name := range s.NetworkNames() {
		n := s.Networks[name]
		if len(n.RPCs) == 0 {
			errs = multierror.Append(errs, fmt.Errorf("networks.%s.rpcs: at least one URL required", name))
		}
		for _, u := range n.RPCs {
			if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
				errs = multierror.Append(errs, fmt.Errorf("networks.%s.rpcs: %q is not an http(s) URL", name, u))
			}
		}
		if n.ChainID < 0 {
			errs = multierror.Append(errs, fmt.Errorf("networks.%s.chain_id: must not be negative", name))
		}
	}
	return errs.ErrorOrNil()
}

func (s *Settings) displayPath() string {
	if s.path != "" {
		return s.path
	}
	return DefaultConfigFile
}
