package contract

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ABIEntry is one ABI entry (constructor, function, event, etc.).
type ABIEntry struct {
	Name            string     `json:"name"`
	Type            string     `json:"type"`
	Inputs          []ABIParam `json:"inputs"`
	Outputs         []ABIParam `json:"outputs"`
	StateMutability string     `json:"stateMutability"`
}

// ABIParam is a parameter in an ABI entry.
type ABIParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// IsWriteFunction returns true if the function modifies state.
func (e ABIEntry) IsWriteFunction() bool {
	return e.Type == "function" &&
		(e.StateMutability == "nonpayable" || e.StateMutability == "payable")
}

// Signature returns the canonical signature, e.g. "transferOwnership(address)".
func (e ABIEntry) Signature() string {
	types := make([]string, len(e.Inputs))
	for i, p := range e.Inputs {
		types[i] = p.Type
	}
	return e.Name + "(" + strings.Join(types, ",") + ")"
}

// Selector returns the 4-byte function selector as 0x-prefixed hex.
func (e ABIEntry) Selector() string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(e.Signature()))
	return "0x" + hex.EncodeToString(h.Sum(nil)[:4])
}

// Constructor returns the constructor entry, or nil if the ABI declares none.
func Constructor(abi []ABIEntry) *ABIEntry {
	for i := range abi {
		if abi[i].Type == "constructor" {
			return &abi[i]
		}
	}
	return nil
}

// FindFunction returns the first function entry called name, or nil.
func FindFunction(abi []ABIEntry, name string) *ABIEntry {
	for i := range abi {
		if abi[i].Type == "function" && abi[i].Name == name {
			return &abi[i]
		}
	}
	return nil
}
