package contract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLoadMissingFile(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "deployments.json"))
	require.NoError(t, r.Load())
	assert.Empty(t, r.All())
}

func TestRegistryAddFillsDefaults(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "deployments.json"))
	d := &Deployment{Contract: "IDO", Network: "harmony", Address: "0xabc"}
	r.Add(d)

	assert.NotEmpty(t, d.ID)
	assert.NotEmpty(t, d.DeployedAt)
}

func TestRegistrySaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deployments.json")
	r := NewRegistry(path)
	r.Add(&Deployment{ID: "a", Contract: "IDO", Network: "harmony", Address: "0x1", DeployedAt: "2023-01-01T00:00:00Z"})
	r.Add(&Deployment{ID: "b", Contract: "IDO", Network: "harmony", Address: "0x2", DeployedAt: "2023-02-01T00:00:00Z", OwnershipTransferred: true})
	r.Add(&Deployment{ID: "c", Contract: "IDO", Network: "testnet", Address: "0x3", DeployedAt: "2023-03-01T00:00:00Z"})
	require.NoError(t, r.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reloaded := NewRegistry(path)
	require.NoError(t, reloaded.Load())
	all := reloaded.All()
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	latest, err := reloaded.Latest("harmony")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
	assert.True(t, latest.OwnershipTransferred)
}

func TestRegistryLatestNotFound(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "deployments.json"))
	_, err := r.Latest("harmony")
	assert.True(t, errors.Is(err, ErrDeploymentNotFound))
}

func TestRegistryLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployments.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0o600))
	assert.Error(t, NewRegistry(path).Load())
}
