package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrDeploymentNotFound is returned when no deployment matches a lookup.
var ErrDeploymentNotFound = errors.New("deployment not found")

// Deployment is one recorded contract deployment.
type Deployment struct {
	ID                   string `json:"id"`
	Contract             string `json:"contract"`
	Network              string `json:"network"`
	ChainID              int64  `json:"chain_id"`
	Address              string `json:"address"`
	TxHash               string `json:"tx_hash"`
	Deployer             string `json:"deployer"`
	NewOwner             string `json:"new_owner,omitempty"`
	OwnershipTransferred bool   `json:"ownership_transferred"`
	Artifact             string `json:"artifact,omitempty"`
	DeployedAt           string `json:"deployed_at"`
}

// Registry stores deployment records in a JSON file, oldest first.
type Registry struct {
	path    string
	entries []*Deployment
}

// NewRegistry creates a Registry backed by a JSON file.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Load reads stored deployments from disk. A missing file is an empty registry.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var entries []*Deployment
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing %s: %w", r.path, err)
	}
	r.entries = entries
	return nil
}

// Save writes all deployments to disk.
func (r *Registry) Save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.path, data, 0o600)
}

// Add appends d, filling in ID and DeployedAt when empty.
func (r *Registry) Add(d *Deployment) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.DeployedAt == "" {
		d.DeployedAt = time.Now().UTC().Format(time.RFC3339)
	}
	r.entries = append(r.entries, d)
}

// All returns deployments sorted newest first.
func (r *Registry) All() []*Deployment {
	out := append([]*Deployment(nil), r.entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].DeployedAt > out[j].DeployedAt })
	return out
}

// Latest returns the most recent deployment on network.
func (r *Registry) Latest(network string) (*Deployment, error) {
	for _, d := range r.All() {
		if d.Network == network {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w on %s", ErrDeploymentNotFound, network)
}
