// Package simchain runs an in-process EVM chain that mines a block for every
// accepted transaction.
package simchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

const GasLimit = 30_000_000

// DefaultBalance is credited to every funded account: 10,000 ether.
var DefaultBalance = new(big.Int).Mul(big.NewInt(10_000), big.NewInt(params.Ether))

type Backend struct {
	*backends.SimulatedBackend
}

// New starts a chain whose genesis credits each funded address with balance.
func New(balance *big.Int, funded ...common.Address) *Backend {
	alloc := make(core.GenesisAlloc, len(funded))
	for _, addr := range funded {
		alloc[addr] = core.GenesisAccount{Balance: new(big.Int).Set(balance)}
	}
	return &Backend{SimulatedBackend: backends.NewSimulatedBackend(alloc, GasLimit)}
}

// ChainID of the simulated chain.
func (b *Backend) ChainID() *big.Int {
	return new(big.Int).Set(b.Blockchain().Config().ChainID)
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	head, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return head.Number.Uint64(), nil
}

// SendTransaction adds the transaction to the pending block and mines it.
func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := b.SimulatedBackend.SendTransaction(ctx, tx); err != nil {
		return err
	}
	b.Commit()
	return nil
}
