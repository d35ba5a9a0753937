package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Mohsinsiddi/idodeploy/internal/config"
	"github.com/Mohsinsiddi/idodeploy/internal/contract"
	"github.com/Mohsinsiddi/idodeploy/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Anvil account #0.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

var (
	contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	newOwner     = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	creationCode = []byte{0x60, 0x80, 0x60, 0x40, 0x52}
)

// fakeNode answers the JSON-RPC calls a deploy makes and keeps every raw
// transaction it receives.
type fakeNode struct {
	mu     sync.Mutex
	status string
	calls  int
	rawTxs []string
}

func newFakeNode(t *testing.T, status string) (*fakeNode, *httptest.Server) {
	t.Helper()
	n := &fakeNode{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     int               `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		n.mu.Lock()
		n.calls++
		var result any
		switch req.Method {
		case "eth_chainId":
			result = "0x539"
		case "eth_blockNumber":
			result = "0x10"
		case "eth_gasPrice":
			result = "0x3b9aca00"
		case "eth_getTransactionCount":
			result = hexutil.EncodeUint64(uint64(len(n.rawTxs)))
		case "eth_estimateGas":
			result = "0x2dc6c0"
		case "eth_sendRawTransaction":
			var raw string
			_ = json.Unmarshal(req.Params[0], &raw)
			n.rawTxs = append(n.rawTxs, raw)
			result = fmt.Sprintf("0x%064x", len(n.rawTxs))
		case "eth_getTransactionReceipt":
			result = map[string]string{
				"status":          n.status,
				"blockNumber":     "0x11",
				"gasUsed":         "0x5208",
				"contractAddress": contractAddr.Hex(),
			}
		case "eth_getCode":
			result = "0x6080"
		case "eth_getBlockByNumber":
			result = map[string]string{"number": "0x10", "baseFeePerGas": "0x7"}
		}
		n.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result}
		if result == nil {
			resp = map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32601, "message": "method not found"}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) txs(t *testing.T) []*types.Transaction {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*types.Transaction, 0, len(n.rawTxs))
	for _, raw := range n.rawTxs {
		tx := new(types.Transaction)
		require.NoError(t, tx.UnmarshalBinary(hexutil.MustDecode(raw)))
		out = append(out, tx)
	}
	return out
}

func (n *fakeNode) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func idoArtifactJSON(t *testing.T) []byte {
	t.Helper()
	abiTypes := []string{"address", "uint256", "address", "uint256", "uint256", "uint256", "uint256", "uint256", "uint256", "uint256", "uint256"}
	inputs := make([]map[string]string, len(abiTypes))
	for i, typ := range abiTypes {
		inputs[i] = map[string]string{"name": fmt.Sprintf("arg%d", i), "type": typ}
	}
	data, err := json.Marshal(map[string]any{
		"_format":      "hh-sol-artifact-1",
		"contractName": "IDO",
		"sourceName":   "contracts/IDO.sol",
		"abi": []map[string]any{
			{"type": "constructor", "inputs": inputs, "stateMutability": "nonpayable"},
			{
				"type": "function", "name": "transferOwnership", "stateMutability": "nonpayable",
				"inputs":  []map[string]string{{"name": "newOwner", "type": "address"}},
				"outputs": []map[string]string{},
			},
		},
		"bytecode": hexutil.Encode(creationCode),
	})
	require.NoError(t, err)
	return data
}

const settingsTemplate = `ido:
  token: "0x1111111111111111111111111111111111111111"
  tokens_for_sale: "1000000000000000000000000"
  collateral_token: "0x2222222222222222222222222222222222222222"
  collateral_required: "1000000000000000000000"
  one_to_raise: "500000000000000000000000"
  buying_starts_at: "2023-01-01T00:00:00Z"
  buying_ends_at: "2023-01-08T00:00:00Z"
  vesting_starts_at: "2023-02-01T00:00:00Z"
  vesting_ends_at: "2023-08-01T00:00:00Z"
  time_to_claim: "72h"
  maximum_tokens_per_wallet: "10000000000000000000000"
  new_owner: "%s"
default_network: local
networks:
  local:
    rpcs: ["%s"]
    chain_id: 1337
timeouts:
  deploy: 5s
  transfer: 5s
`

func writeProject(t *testing.T, rpcURL, owner string) *config.Settings {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ido.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(settingsTemplate, owner, rpcURL)), 0o600))

	art := filepath.Join(dir, "artifacts", "contracts", "IDO.sol", "IDO.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(art), 0o755))
	require.NoError(t, os.WriteFile(art, idoArtifactJSON(t), 0o644))

	s, err := config.Load(path)
	require.NoError(t, err)
	return s
}

func testKeys(t *testing.T) *wallet.InMemoryKeystore {
	t.Helper()
	ks := wallet.NewInMemoryKeystore()
	_, err := ks.Store("local", testKey)
	require.NoError(t, err)
	return ks
}

func testEnv(t *testing.T, stdin string) (deployEnv, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return deployEnv{in: strings.NewReader(stdin), out: &out, errOut: &errOut, keys: testKeys(t)}, &out, &errOut
}

func loadRecords(t *testing.T, s *config.Settings) []*contract.Deployment {
	t.Helper()
	reg := contract.NewRegistry(s.DeploymentsPath())
	require.NoError(t, reg.Load())
	return reg.All()
}

// ---------------------------------------------------------------------------
// runDeploy
// ---------------------------------------------------------------------------

func TestDeployEmptyAnswerTransfersOwnership(t *testing.T) {
	node, srv := newFakeNode(t, "0x1")
	s := writeProject(t, srv.URL, newOwner.Hex())
	env, out, errOut := testEnv(t, "\n")

	require.NoError(t, runDeploy(context.Background(), s, deployFlags{}, env))

	assert.Equal(t, "IDO contract deployed to: "+contractAddr.Hex()+"\nOwnership transferred.\n", out.String())
	assert.Contains(t, errOut.String(), "Would you like to transfer ownership to address "+newOwner.Hex())

	txs := node.txs(t)
	require.Len(t, txs, 2)

	create := txs[0]
	assert.Nil(t, create.To())
	assert.Equal(t, int64(1337), create.ChainId().Int64())
	require.True(t, bytes.HasPrefix(create.Data(), creationCode))
	args := create.Data()[len(creationCode):]
	require.Len(t, args, 11*32)
	buyingStartsAt := new(big.Int).SetBytes(args[5*32 : 6*32])
	assert.Equal(t, int64(1672531200), buyingStartsAt.Int64())

	transfer := txs[1]
	require.NotNil(t, transfer.To())
	assert.Equal(t, contractAddr, *transfer.To())
	assert.Equal(t, "0xf2fde38b", hexutil.Encode(transfer.Data()[:4]))
	assert.Equal(t, newOwner, common.BytesToAddress(transfer.Data()[4:]))

	records := loadRecords(t, s)
	require.Len(t, records, 1)
	assert.Equal(t, "IDO", records[0].Contract)
	assert.Equal(t, "local", records[0].Network)
	assert.Equal(t, int64(1337), records[0].ChainID)
	assert.Equal(t, contractAddr.Hex(), records[0].Address)
	assert.True(t, records[0].OwnershipTransferred)
	assert.Equal(t, "artifacts/contracts/IDO.sol/IDO.json", records[0].Artifact)
}

func TestDeployAnswerFlagSkipsTransfer(t *testing.T) {
	node, srv := newFakeNode(t, "0x1")
	s := writeProject(t, srv.URL, newOwner.Hex())
	env, out, errOut := testEnv(t, "")

	flags := deployFlags{answer: "skip", answerSet: true}
	require.NoError(t, runDeploy(context.Background(), s, flags, env))

	assert.Equal(t, "IDO contract deployed to: "+contractAddr.Hex()+"\n", out.String())
	assert.NotContains(t, errOut.String(), "Would you like")
	assert.Len(t, node.txs(t), 1)

	records := loadRecords(t, s)
	require.Len(t, records, 1)
	assert.False(t, records[0].OwnershipTransferred)
	assert.Equal(t, newOwner.Hex(), records[0].NewOwner)
}

func TestDeployWithoutNewOwnerNeverPrompts(t *testing.T) {
	node, srv := newFakeNode(t, "0x1")
	s := writeProject(t, srv.URL, "")
	env, out, errOut := testEnv(t, "")

	require.NoError(t, runDeploy(context.Background(), s, deployFlags{}, env))
	assert.Equal(t, "IDO contract deployed to: "+contractAddr.Hex()+"\n", out.String())
	assert.NotContains(t, errOut.String(), "Would you like")
	assert.Len(t, node.txs(t), 1)
}

func TestDeployRevertedMakesNoTransfer(t *testing.T) {
	node, srv := newFakeNode(t, "0x0")
	s := writeProject(t, srv.URL, newOwner.Hex())
	env, out, _ := testEnv(t, "\n")

	err := runDeploy(context.Background(), s, deployFlags{}, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")
	assert.Empty(t, out.String())
	assert.Len(t, node.txs(t), 1)
	assert.Empty(t, loadRecords(t, s))
}

func TestDeployInvalidConfigTouchesNoNetwork(t *testing.T) {
	node, srv := newFakeNode(t, "0x1")
	s := writeProject(t, srv.URL, "not-an-address")
	env, out, _ := testEnv(t, "\n")

	err := runDeploy(context.Background(), s, deployFlags{}, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
	assert.Empty(t, out.String())
	assert.Zero(t, node.callCount())
}

func TestDeployMissingKey(t *testing.T) {
	_, srv := newFakeNode(t, "0x1")
	s := writeProject(t, srv.URL, newOwner.Hex())
	env, _, _ := testEnv(t, "\n")
	env.keys = wallet.NewInMemoryKeystore()

	err := runDeploy(context.Background(), s, deployFlags{}, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idodeploy key import local")
}

func TestDeployUnknownNetwork(t *testing.T) {
	_, srv := newFakeNode(t, "0x1")
	s := writeProject(t, srv.URL, newOwner.Hex())
	env, _, _ := testEnv(t, "\n")

	err := runDeploy(context.Background(), s, deployFlags{network: "mainnet"}, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown network "mainnet"`)
}

func writeArtifactWithoutTransfer(t *testing.T, s *config.Settings) {
	t.Helper()
	var art map[string]any
	require.NoError(t, json.Unmarshal(idoArtifactJSON(t), &art))
	art["abi"] = art["abi"].([]any)[:1]
	data, err := json.Marshal(art)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.ArtifactPath(), data, 0o644))
}

func TestDeployRejectsArtifactWithoutTransferOwnership(t *testing.T) {
	node, srv := newFakeNode(t, "0x1")
	s := writeProject(t, srv.URL, newOwner.Hex())
	writeArtifactWithoutTransfer(t, s)
	env, out, _ := testEnv(t, "\n")

	err := runDeploy(context.Background(), s, deployFlags{}, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no transferOwnership(address)")
	assert.Empty(t, out.String())
	assert.Zero(t, node.callCount())
}

func TestDeployWithoutOwnerAcceptsArtifactWithoutTransferOwnership(t *testing.T) {
	node, srv := newFakeNode(t, "0x1")
	s := writeProject(t, srv.URL, "")
	writeArtifactWithoutTransfer(t, s)
	env, _, _ := testEnv(t, "")

	require.NoError(t, runDeploy(context.Background(), s, deployFlags{}, env))
	assert.Len(t, node.txs(t), 1)
}
