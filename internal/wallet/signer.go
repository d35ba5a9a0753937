package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs EVM transactions with a single private key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key, with or without 0x.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(normaliseHexKey(hexKey))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// LoadSigner retrieves the key at ref from ks.
func LoadSigner(ks KeyStore, ref string) (*Signer, error) {
	hexKey, err := ks.Retrieve(ref)
	if err != nil {
		return nil, fmt.Errorf("retrieving key: %w", err)
	}
	return NewSigner(hexKey)
}

// AddressOf returns the address controlled by hexKey.
func AddressOf(hexKey string) (common.Address, error) {
	s, err := NewSigner(hexKey)
	if err != nil {
		return common.Address{}, err
	}
	return s.Address(), nil
}

// SignTx signs an EVM transaction and returns the raw signed bytes.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) ([]byte, error) {
	signer := types.NewLondonSigner(chainID)
	signed, err := types.SignTx(tx, signer, s.key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling signed tx: %w", err)
	}
	return raw, nil
}

// Address returns the signer's address.
func (s *Signer) Address() common.Address {
	return s.address
}
