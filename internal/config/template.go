package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mohsinsiddi/idodeploy/internal/ido"
	"gopkg.in/yaml.v3"
)

// templateComments are written above the matching top-level keys.
var templateComments = map[string]string{
	"ido": "Constructor parameters of the IDO contract.\n" +
		"Amounts are integers in the token's smallest unit; quote values above 2^63.\n" +
		"Dates: RFC 3339, YYYY-MM-DD (UTC) or YYYY-MM-DD HH:MM[:SS] (local time).\n" +
		"YAML reads an unquoted date-time without a zone as UTC; quote it for local time.\n" +
		"time_to_claim: seconds or a duration such as 72h.\n" +
		"Leave new_owner empty to keep ownership with the deployer.",
	"default_network": "Network used when --network is not given.",
	"rpc_algorithm":   "fastest | round-robin | failover",
	"artifact":        "Compiled contract artifact read by deploy, written by build.",
	"deployments":     "Deployment record file.",
	"networks":        "key is the keyring reference created by `idodeploy key import <network>`.",
	"solidity":        "Compiler settings for build, compile and flatten.\nWithout solc the pinned version is downloaded into cache_dir (default ~/.solc-svm).",
	"timeouts":        "Maximum time to wait for each transaction to be mined.",
}

// Template returns a starter settings document.
func Template() *Settings {
	return &Settings{
		IDO: ido.Config{
			Token:                  "0x0000000000000000000000000000000000000000",
			TokensForSale:          "1000000000000000000000000",
			CollateralToken:        "0x0000000000000000000000000000000000000000",
			CollateralRequired:     "1000000000000000000000",
			ONEToRaise:             "500000000000000000000000",
			BuyingStartsAt:         "2023-01-01T00:00:00Z",
			BuyingEndsAt:           "2023-01-08T00:00:00Z",
			VestingStartsAt:        "2023-02-01T00:00:00Z",
			VestingEndsAt:          "2023-08-01T00:00:00Z",
			TimeToClaim:            "72h",
			MaximumTokensPerWallet: "10000000000000000000000",
		},
		DefaultNetwork: "harmony-testnet",
		RPCAlgorithm:   defaultAlgorithm,
		Artifact:       defaultArtifact,
		Deployments:    defaultDeployments,
		Networks: map[string]Network{
			"harmony-testnet": {
				RPCs:    []string{"https://api.s0.b.hmny.io"},
				ChainID: 1666700000,
				Key:     "idodeploy.harmony-testnet",
			},
			"harmony": {
				RPCs:    []string{"https://api.harmony.one", "https://api.s0.t.hmny.io"},
				ChainID: 1666600000,
				Key:     "idodeploy.harmony",
			},
		},
		Solidity: Solidity{
			Version:    DefaultSolcVersion,
			Sources:    defaultSources,
			Artifacts:  defaultArtifacts,
			Contract:   defaultContract,
			FlattenOut: defaultFlattenOut,
			Optimizer:  false,
			Runs:       200,
		},
		Timeouts: Timeouts{
			Deploy:   TxDeployTimeout,
			Transfer: TxConfirmTimeout,
		},
	}
}

// Marshal renders s as YAML. When commented is set, top-level keys carry
// explanatory comments.
func Marshal(s *Settings, commented bool) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(s); err != nil {
		return nil, err
	}
	if commented && doc.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Content); i += 2 {
			if c, ok := templateComments[doc.Content[i].Value]; ok {
				doc.Content[i].HeadComment = c
			}
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes the starter file to path. It refuses to overwrite an
// existing file unless force is set.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := Marshal(Template(), true)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}
