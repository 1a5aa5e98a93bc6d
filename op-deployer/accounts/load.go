package accounts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gethaccounts "github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	hdwallet "github.com/ethereum-optimism/go-ethereum-hdwallet"
	"golang.org/x/term"

	opcrypto "github.com/dcSpark/op-deployer/op-service/crypto"
)

// PasswordFn returns the passphrase for the keystore file at path.
type PasswordFn func(path string) (string, error)

// StaticPassword returns the same passphrase for every keystore file.
func StaticPassword(password string) PasswordFn {
	return func(string) (string, error) {
		return password, nil
	}
}

// TerminalPassword prompts for the passphrase on the controlling terminal.
func TerminalPassword(path string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no keystore password configured for %s and stdin is not a terminal", path)
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", filepath.Base(path))
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// NewProviderFromConfig loads every configured account, in order: private
// keys, mnemonic derived accounts, keystore files sorted by file name.
func NewProviderFromConfig(cfg CLIConfig, password PasswordFn) (*Provider, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	var accs []Account
	for i, hexKey := range cfg.PrivateKeys {
		key, err := opcrypto.ParsePrivateKey(hexKey)
		if err != nil {
			return nil, fmt.Errorf("private key %d: %w", i, err)
		}
		accs = append(accs, NewAccount(key, "private-key"))
	}

	if cfg.Mnemonic != "" {
		derived, err := DeriveMnemonic(cfg.Mnemonic, cfg.HDPathTemplate, cfg.MnemonicCount)
		if err != nil {
			return nil, err
		}
		accs = append(accs, derived...)
	}

	if cfg.KeystoreDir != "" {
		if cfg.Password != "" {
			password = StaticPassword(cfg.Password)
		}
		stored, err := LoadKeystore(cfg.KeystoreDir, password)
		if err != nil {
			return nil, err
		}
		accs = append(accs, stored...)
	}

	return NewProvider(accs...), nil
}

// DeriveMnemonic derives count accounts along pathTemplate, which must
// contain a single %d for the account index.
func DeriveMnemonic(mnemonic string, pathTemplate string, count int) ([]Account, error) {
	wallet, err := hdwallet.NewFromMnemonic(strings.TrimSpace(mnemonic))
	if err != nil {
		return nil, fmt.Errorf("failed to load mnemonic: %w", err)
	}

	accs := make([]Account, 0, count)
	for i := 0; i < count; i++ {
		hdPath := fmt.Sprintf(pathTemplate, i)
		path, err := gethaccounts.ParseDerivationPath(hdPath)
		if err != nil {
			return nil, fmt.Errorf("invalid hd path %q: %w", hdPath, err)
		}
		account, err := wallet.Derive(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to derive %s: %w", hdPath, err)
		}
		key, err := wallet.PrivateKey(account)
		if err != nil {
			return nil, fmt.Errorf("failed to get key for %s: %w", hdPath, err)
		}
		accs = append(accs, NewAccount(key, "mnemonic "+hdPath))
	}
	return accs, nil
}

// LoadKeystore decrypts every key file in dir. Hidden files and directories
// are skipped.
func LoadKeystore(dir string, password PasswordFn) ([]Account, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	var accs []Account
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		keyJSON, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		if password == nil {
			return nil, errors.New("keystore configured without a password source")
		}
		pw, err := password(path)
		if err != nil {
			return nil, err
		}
		key, err := keystore.DecryptKey(keyJSON, pw)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt %s: %w", entry.Name(), err)
		}
		accs = append(accs, NewAccount(key.PrivateKey, "keystore "+entry.Name()))
	}
	return accs, nil
}
