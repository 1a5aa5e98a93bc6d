// Package accounts provides the ordered set of signing accounts available to
// the deployer. Account 0 is the first configured private key, followed by
// mnemonic derived accounts and keystore files.
package accounts

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/exp/slices"
)

var (
	ErrNoAccounts      = errors.New("no accounts available")
	ErrIndexOutOfRange = errors.New("account index out of range")
)

// Account is a locally held signing key.
type Account struct {
	Address common.Address
	Key     *ecdsa.PrivateKey
	// Source describes where the key came from, e.g. "mnemonic m/44'/60'/0'/0/0".
	Source string
}

func NewAccount(key *ecdsa.PrivateKey, source string) Account {
	return Account{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		Key:     key,
		Source:  source,
	}
}

func (a Account) String() string {
	return a.Address.Hex()
}

// Provider is an immutable, ordered list of accounts.
type Provider struct {
	accounts []Account
}

// NewProvider returns a provider over accs. Accounts whose address was
// already seen are dropped, so the first occurrence keeps its index.
func NewProvider(accs ...Account) *Provider {
	p := &Provider{accounts: make([]Account, 0, len(accs))}
	for _, acc := range accs {
		if _, ok := p.Find(acc.Address); ok {
			continue
		}
		p.accounts = append(p.accounts, acc)
	}
	return p
}

func (p *Provider) Len() int {
	return len(p.accounts)
}

// At returns the account at index i.
func (p *Provider) At(i int) (Account, error) {
	if len(p.accounts) == 0 {
		return Account{}, ErrNoAccounts
	}
	if i < 0 || i >= len(p.accounts) {
		return Account{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(p.accounts))
	}
	return p.accounts[i], nil
}

func (p *Provider) Find(addr common.Address) (Account, bool) {
	i := slices.IndexFunc(p.accounts, func(acc Account) bool { return acc.Address == addr })
	if i < 0 {
		return Account{}, false
	}
	return p.accounts[i], true
}

func (p *Provider) Addresses() []common.Address {
	out := make([]common.Address, len(p.accounts))
	for i, acc := range p.accounts {
		out[i] = acc.Address
	}
	return out
}

// All returns a copy of the accounts in order.
func (p *Provider) All() []Account {
	return slices.Clone(p.accounts)
}
