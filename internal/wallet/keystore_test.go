package wallet

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known Hardhat/Anvil test account #0. Never fund on mainnet.
const (
	testPrivKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testSignerAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

// testKeystore returns a file-backed Keystore isolated to a temp directory.
func testKeystore(t *testing.T) *Keystore {
	t.Helper()
	ring, err := keyring.Open(keyring.Config{
		ServiceName:      "idodeploy-test",
		AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
		FileDir:          t.TempDir(),
		FilePasswordFunc: func(string) (string, error) { return "testpass", nil },
	})
	require.NoError(t, err)
	return &Keystore{ring: ring}
}

// ---------------------------------------------------------------------------
// normaliseHexKey
// ---------------------------------------------------------------------------

func TestNormaliseHexKey(t *testing.T) {
	cases := map[string]string{
		"0xabc123":   "abc123",
		"0Xabc123":   "abc123",
		"abc123":     "abc123",
		"  0xabc  ":  "abc",
		"0x":         "",
		"":           "",
		"0x" + testPrivKeyHex: testPrivKeyHex,
	}
	for in, want := range cases {
		assert.Equal(t, want, normaliseHexKey(in), "input %q", in)
	}
}

// ---------------------------------------------------------------------------
// Keystore
// ---------------------------------------------------------------------------

func TestKeystoreStoreRetrieveDelete(t *testing.T) {
	t.Setenv(EnvDeployerKey, "")
	ks := testKeystore(t)

	ref, err := ks.Store("harmony", "0x"+testPrivKeyHex)
	require.NoError(t, err)
	assert.Equal(t, "idodeploy.harmony", ref)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, testPrivKeyHex, got)

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.Error(t, err)
}

func TestKeystoreRetrieveEnvVarOverride(t *testing.T) {
	t.Setenv(EnvDeployerKey, "0x"+testPrivKeyHex)

	ks := &Keystore{ring: nil} // must be served by the env var
	got, err := ks.Retrieve("idodeploy.any-ref")
	require.NoError(t, err)
	assert.Equal(t, testPrivKeyHex, got)
}

func TestKeystoreNilRing(t *testing.T) {
	t.Setenv(EnvDeployerKey, "")
	ks := &Keystore{}

	_, err := ks.Retrieve("idodeploy.x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keystore not available")

	_, err = ks.Store("x", testPrivKeyHex)
	assert.Error(t, err)
	assert.Error(t, ks.Delete("idodeploy.x"))
}

func TestKeystoreReportsOpenError(t *testing.T) {
	t.Setenv(EnvDeployerKey, "")
	cause := errors.New("the name org.freedesktop.secrets was not provided")
	ks := &Keystore{openErr: cause}

	_, err := ks.Retrieve("idodeploy.x")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "keystore not available: the name org.freedesktop.secrets")

	_, err = ks.Store("x", testPrivKeyHex)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, ks.Delete("idodeploy.x"), cause)
}

func TestInMemoryKeystore(t *testing.T) {
	ks := NewInMemoryKeystore()
	ref, err := ks.Store("local", "0x"+testPrivKeyHex)
	require.NoError(t, err)

	got, err := ks.Retrieve(ref)
	require.NoError(t, err)
	assert.Equal(t, testPrivKeyHex, got)

	require.NoError(t, ks.Delete(ref))
	_, err = ks.Retrieve(ref)
	assert.Error(t, err)
}
