package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

const keychainService = "idodeploy"

// EnvDeployerKey overrides any stored key when set.
const EnvDeployerKey = "IDO_DEPLOYER_KEY"

// EnvKeyringPassword unlocks the file backend without a terminal prompt.
const EnvKeyringPassword = "IDO_KEYRING_PASSWORD"

// KeyStore stores deployer private keys by reference.
type KeyStore interface {
	Store(name, hexKey string) (string, error)
	Retrieve(ref string) (string, error)
	Delete(ref string) error
}

// Keystore wraps OS keychain access.
type Keystore struct {
	ring    keyring.Keyring
	openErr error // why ring is nil
}

// DefaultKeystore returns a keystore backed by the OS keychain, or by an
// encrypted file under dir where no keychain is available.
func DefaultKeystore(dir string) *Keystore {
	cfg := keyring.Config{
		ServiceName:              keychainService,
		KeychainTrustApplication: true,
		FileDir:                  filepath.Join(dir, "keys"),
		FilePasswordFunc:         filePassword,
	}

	// On Linux without a GUI, fall back to file-based storage.
	if runtime.GOOS == "linux" {
		cfg.AllowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KWalletBackend,
			keyring.FileBackend,
		}
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
		ring, err = keyring.Open(cfg)
	}
	return &Keystore{ring: ring, openErr: err}
}

func (k *Keystore) unavailable() error {
	if k.openErr != nil {
		return fmt.Errorf("keystore not available: %w", k.openErr)
	}
	return fmt.Errorf("keystore not available")
}

func filePassword(prompt string) (string, error) {
	if pw := os.Getenv(EnvKeyringPassword); pw != "" {
		return pw, nil
	}
	return keyring.TerminalPrompt(prompt)
}

// Ref returns the reference a key stored under name is kept at.
func Ref(name string) string {
	return keychainService + "." + name
}

// Store saves a private key for a network name and returns its reference.
func (k *Keystore) Store(name, hexKey string) (string, error) {
	if k.ring == nil {
		return "", k.unavailable()
	}
	ref := Ref(name)
	err := k.ring.Set(keyring.Item{
		Key:         ref,
		Data:        []byte(normaliseHexKey(hexKey)),
		Label:       "idodeploy deployer key (" + name + ")",
		Description: "EVM private key",
	})
	if err != nil {
		return "", fmt.Errorf("keychain store: %w", err)
	}
	return ref, nil
}

// Retrieve fetches a private key by its reference. IDO_DEPLOYER_KEY takes
// precedence over anything stored.
func (k *Keystore) Retrieve(ref string) (string, error) {
	if v := os.Getenv(EnvDeployerKey); v != "" {
		return normaliseHexKey(v), nil
	}
	if k.ring == nil {
		return "", k.unavailable()
	}
	item, err := k.ring.Get(ref)
	if err != nil {
		return "", fmt.Errorf("keychain retrieve %s: %w", ref, err)
	}
	return normaliseHexKey(string(item.Data)), nil
}

// Delete removes a stored key.
func (k *Keystore) Delete(ref string) error {
	if k.ring == nil {
		return k.unavailable()
	}
	return k.ring.Remove(ref)
}

// InMemoryKeystore stores keys in memory. Used by tests and dry runs.
type InMemoryKeystore struct {
	mu   sync.Mutex
	data map[string]string
}

// NewInMemoryKeystore creates an in-memory keystore.
func NewInMemoryKeystore() *InMemoryKeystore {
	return &InMemoryKeystore{data: make(map[string]string)}
}

func (k *InMemoryKeystore) Store(name, hexKey string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	ref := Ref(name)
	k.data[ref] = normaliseHexKey(hexKey)
	return ref, nil
}

func (k *InMemoryKeystore) Retrieve(ref string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.data[ref]
	if !ok {
		return "", fmt.Errorf("key not found: %s", ref)
	}
	return v, nil
}

func (k *InMemoryKeystore) Delete(ref string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, ref)
	return nil
}

// normaliseHexKey trims whitespace and any 0x prefix.
func normaliseHexKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
