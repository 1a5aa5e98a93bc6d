package deployer

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/log"

	"github.com/dcSpark/op-deployer/op-deployer/accounts"
	"github.com/dcSpark/op-deployer/op-deployer/contract"
	"github.com/dcSpark/op-deployer/op-deployer/project"
)

const (
	ContractName = "Greeter"
	Greeting     = "Hello"
)

// ArtifactSource resolves compiled contracts by name.
type ArtifactSource interface {
	Artifact(name string) (*project.Artifact, error)
}

// Deploy deploys Greeter("Hello") from the first account of provider.
func Deploy(ctx context.Context, l log.Logger, provider *accounts.Provider, artifacts ArtifactSource,
	senders contract.SenderFn, caller bind.ContractCaller) (*contract.Contract, error) {
	from, err := provider.At(0)
	if err != nil {
		return nil, fmt.Errorf("failed to select deployer account: %w", err)
	}
	artifact, err := artifacts.Artifact(ContractName)
	if err != nil {
		return nil, err
	}
	greeter := contract.NewContainerType(artifact, senders, caller, l)
	return greeter.Deploy(ctx, contract.TxOpts{From: from}, Greeting)
}
