// Package crypto provides transaction signing functions for the services.
//
// Signers are bound to a single address; they refuse to sign on behalf of any
// other sender so that a mis-wired tx manager fails loudly instead of sending
// from an unexpected account.
package crypto

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrSignerMismatch = errors.New("signer address mismatch")

// SignerFn signs a transaction on behalf of from.
type SignerFn func(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error)

// ParsePrivateKey decodes a hex encoded secp256k1 private key, with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}

// PrivateKeySignerFn returns a SignerFn that signs with key for the given chain.
func PrivateKeySignerFn(key *ecdsa.PrivateKey, chainID *big.Int) SignerFn {
	from := crypto.PubkeyToAddress(key.PublicKey)
	signer := types.LatestSignerForChainID(chainID)
	return func(_ context.Context, address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if address != from {
			return nil, fmt.Errorf("%w: have %s, want %s", ErrSignerMismatch, address, from)
		}
		return types.SignTx(tx, signer, key)
	}
}
