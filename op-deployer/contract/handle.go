package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

type deployment struct {
	txHash      common.Hash
	blockNumber uint64
	deployer    common.Address
	deployedAt  time.Time
}

// Contract is a handle to a contract on chain.
type Contract struct {
	Name    string
	Address common.Address

	// nil when the handle was not created by a deployment
	deployment *deployment
	bound      *bind.BoundContract
}

// String returns the checksummed contract address.
func (c *Contract) String() string {
	return c.Address.Hex()
}

// TxHash is the hash of the creation transaction, zero if unknown.
func (c *Contract) TxHash() common.Hash {
	if c.deployment == nil {
		return common.Hash{}
	}
	return c.deployment.txHash
}

// Call invokes a read-only method and returns its unpacked outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", c.Name, method, err)
	}
	return out, nil
}

// Deployment is the on-disk record of a deployed contract.
type Deployment struct {
	ContractName    string         `json:"contractName"`
	Address         common.Address `json:"address"`
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     uint64         `json:"blockNumber,omitempty"`
	Deployer        common.Address `json:"deployer"`
	ChainID         uint64         `json:"chainId"`
	DeployedAt      *time.Time     `json:"deployedAt,omitempty"`
}

func (c *Contract) Record(chainID *big.Int) Deployment {
	rec := Deployment{
		ContractName: c.Name,
		Address:      c.Address,
		ChainID:      chainID.Uint64(),
	}
	if d := c.deployment; d != nil {
		rec.TransactionHash = d.txHash
		rec.BlockNumber = d.blockNumber
		rec.Deployer = d.deployer
		at := d.deployedAt
		rec.DeployedAt = &at
	}
	return rec
}

// WriteRecord stores the deployment record at <dir>/<chainID>/<address>.json
// and returns the path written.
func (c *Contract) WriteRecord(dir string, chainID *big.Int) (string, error) {
	chainDir := filepath.Join(dir, chainID.String())
	if err := os.MkdirAll(chainDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create deployments dir: %w", err)
	}
	data, err := json.MarshalIndent(c.Record(chainID), "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(chainDir, c.Address.Hex()+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to write deployment record: %w", err)
	}
	return path, nil
}
