package contract

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
)

// Artifact holds the ABI and creation bytecode of a compiled contract.
type Artifact struct {
	ContractName string
	SourceName   string
	ABI          []ABIEntry
	RawABI       json.RawMessage
	Bytecode     []byte // creation bytecode, no 0x prefix
	Path         string
}

// LoadArtifact loads a Hardhat or Foundry artifact JSON file. It returns an
// error if the file has no "abi" array or no deployable bytecode.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read artifact file: %w", err)
	}
	a, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.Path = path
	return a, nil
}

// ParseArtifact parses artifact JSON held in memory.
func ParseArtifact(data []byte) (*Artifact, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("artifact is empty")
	}

	var raw struct {
		ContractName string          `json:"contractName"`
		SourceName   string          `json:"sourceName"`
		ABI          json.RawMessage `json:"abi"`
		Bytecode     json.RawMessage `json:"bytecode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid artifact JSON: %w", err)
	}

	if len(raw.ABI) < 2 || raw.ABI[0] != '[' {
		return nil, fmt.Errorf("artifact has no valid \"abi\" array")
	}
	abi, err := parseABI(raw.ABI)
	if err != nil {
		return nil, fmt.Errorf("parsing artifact ABI: %w", err)
	}
	if err := validateABI(abi); err != nil {
		return nil, err
	}

	if len(raw.Bytecode) == 0 {
		return nil, fmt.Errorf("artifact has no bytecode: cannot deploy an interface or abstract contract")
	}
	bcHex, err := extractBytecodeHex(raw.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("extracting bytecode from artifact: %w", err)
	}
	if bcHex == "" || bcHex == "0x" {
		return nil, fmt.Errorf("artifact bytecode is empty: cannot deploy an interface or abstract contract")
	}
	if strings.Contains(bcHex, "__$") {
		return nil, fmt.Errorf("artifact bytecode has unlinked library references")
	}
	bc, err := hex.DecodeString(strings.TrimPrefix(bcHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode hex in artifact: %w", err)
	}

	return &Artifact{
		ContractName: raw.ContractName,
		SourceName:   raw.SourceName,
		ABI:          abi,
		RawABI:       raw.ABI,
		Bytecode:     bc,
	}, nil
}

// ParsedABI returns the ABI in go-ethereum form for argument packing.
func (a *Artifact) ParsedABI() (gethabi.ABI, error) {
	parsed, err := gethabi.JSON(bytes.NewReader(a.RawABI))
	if err != nil {
		return gethabi.ABI{}, fmt.Errorf("parsing ABI: %w", err)
	}
	return parsed, nil
}

func parseABI(data []byte) ([]ABIEntry, error) {
	var abi []ABIEntry
	if err := json.Unmarshal(data, &abi); err != nil {
		return nil, fmt.Errorf("invalid ABI JSON: expected an array of function/event definitions: %w", err)
	}
	return abi, nil
}

// extractBytecodeHex handles the two common artifact formats:
//   - Hardhat:  "bytecode": "0x608060..."
//   - Foundry:  "bytecode": {"object": "0x608060..."}
func extractBytecodeHex(raw json.RawMessage) (string, error) {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str), nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Object != "" {
		return strings.TrimSpace(obj.Object), nil
	}

	return "", fmt.Errorf("bytecode field is neither a hex string nor a {\"object\":\"0x...\"} object")
}

// validateABI checks that the parsed ABI has at least one callable entry.
func validateABI(abi []ABIEntry) error {
	if len(abi) == 0 {
		return fmt.Errorf("ABI is empty")
	}
	for _, e := range abi {
		if e.Type == "function" || e.Type == "event" || e.Type == "constructor" {
			return nil
		}
	}
	return fmt.Errorf("ABI has %d entries but none are functions, events or a constructor", len(abi))
}
