package project

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	ErrArtifactNotFound = errors.New("contract artifact not found")
	ErrUnlinkedBytecode = errors.New("bytecode contains unlinked library references")
	ErrEmptyBytecode    = errors.New("artifact has no deployable bytecode")
)

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	ContractName     string
	ABI              abi.ABI
	Bytecode         []byte
	DeployedBytecode []byte
	Path             string
}

// rawArtifact covers the brownie, hardhat and foundry output formats.
// Bytecode is either a hex string or an object with an "object" field.
type rawArtifact struct {
	ContractName     string          `json:"contractName"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         json.RawMessage `json:"bytecode"`
	DeployedBytecode json.RawMessage `json:"deployedBytecode"`
}

type rawBytecodeObject struct {
	Object string `json:"object"`
}

// LoadArtifact reads and decodes the artifact at path.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	artifact, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("invalid artifact %s: %w", path, err)
	}
	artifact.Path = path
	return artifact, nil
}

func ParseArtifact(data []byte) (*Artifact, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}
	if len(raw.ABI) == 0 {
		return nil, errors.New("artifact has no abi")
	}
	parsed, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse abi: %w", err)
	}

	bytecode, err := decodeBytecode(raw.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("bytecode: %w", err)
	}
	if len(bytecode) == 0 {
		return nil, ErrEmptyBytecode
	}
	deployed, err := decodeBytecode(raw.DeployedBytecode)
	if err != nil {
		return nil, fmt.Errorf("deployed bytecode: %w", err)
	}

	return &Artifact{
		ContractName:     raw.ContractName,
		ABI:              parsed,
		Bytecode:         bytecode,
		DeployedBytecode: deployed,
	}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var code string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &code); err != nil {
			return nil, err
		}
	} else {
		var obj rawBytecodeObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		code = obj.Object
	}

	code = strings.TrimPrefix(strings.TrimSpace(code), "0x")
	// Solidity marks library addresses to be linked as __$<hash>$__ or __<name>__
	if strings.Contains(code, "__") {
		return nil, ErrUnlinkedBytecode
	}
	out, err := hex.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return out, nil
}
