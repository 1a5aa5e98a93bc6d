// Package contract deploys compiled artifacts and wraps the resulting
// on-chain contracts.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/exp/slices"

	"github.com/dcSpark/op-deployer/op-deployer/accounts"
	"github.com/dcSpark/op-deployer/op-deployer/project"
	"github.com/dcSpark/op-deployer/op-service/txmgr"
)

var (
	ErrDeploymentReverted = errors.New("deployment transaction reverted")
	ErrNoContractAddress  = errors.New("receipt has no contract address")
	ErrSenderMismatch     = errors.New("transaction manager sends from a different account")
)

// SenderFn returns the transaction manager that signs and sends for the
// given account.
type SenderFn func(from accounts.Account) (txmgr.TxManager, error)

// TxOpts are the per-transaction options of a deployment.
type TxOpts struct {
	From     accounts.Account
	GasLimit uint64
	Value    *big.Int
}

// ContainerType is a deployable contract type: an artifact together with
// the means to send transactions and make calls.
type ContainerType struct {
	artifact *project.Artifact
	senders  SenderFn
	caller   bind.ContractCaller
	l        log.Logger
}

func NewContainerType(artifact *project.Artifact, senders SenderFn, caller bind.ContractCaller, l log.Logger) *ContainerType {
	return &ContainerType{
		artifact: artifact,
		senders:  senders,
		caller:   caller,
		l:        l.New("contract", artifact.ContractName),
	}
}

func (c *ContainerType) Name() string {
	return c.artifact.ContractName
}

// Deploy sends a contract creation transaction carrying the artifact's
// bytecode followed by the ABI encoded constructor arguments, and waits
// for it to be confirmed.
func (c *ContainerType) Deploy(ctx context.Context, opts TxOpts, args ...interface{}) (*Contract, error) {
	input, err := c.artifact.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack constructor arguments: %w", err)
	}
	data := append(slices.Clone(c.artifact.Bytecode), input...)

	sender, err := c.senders(opts.From)
	if err != nil {
		return nil, fmt.Errorf("no sender for %s: %w", opts.From.Address, err)
	}
	if sender.From() != opts.From.Address {
		return nil, fmt.Errorf("%w: want %s, have %s", ErrSenderMismatch, opts.From.Address, sender.From())
	}

	c.l.Info("deploying contract", "from", opts.From.Address, "args", len(args))
	receipt, err := sender.Send(ctx, txmgr.TxCandidate{
		TxData:   data,
		GasLimit: opts.GasLimit,
		Value:    opts.Value,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s: %w", c.Name(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s in tx %s", ErrDeploymentReverted, c.Name(), receipt.TxHash)
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: tx %s", ErrNoContractAddress, receipt.TxHash)
	}

	c.l.Info("contract deployed", "address", receipt.ContractAddress, "tx", receipt.TxHash,
		"block", receipt.BlockNumber, "gas_used", receipt.GasUsed)
	return c.handle(receipt.ContractAddress, &deployment{
		txHash:      receipt.TxHash,
		blockNumber: receipt.BlockNumber.Uint64(),
		deployer:    opts.From.Address,
		deployedAt:  time.Now().UTC(),
	}), nil
}

// At returns a handle to an already deployed instance of the contract type.
func (c *ContainerType) At(address common.Address) *Contract {
	return c.handle(address, nil)
}

func (c *ContainerType) handle(address common.Address, d *deployment) *Contract {
	return &Contract{
		Name:       c.Name(),
		Address:    address,
		deployment: d,
		bound:      bind.NewBoundContract(address, c.artifact.ABI, c.caller, nil, nil),
	}
}
