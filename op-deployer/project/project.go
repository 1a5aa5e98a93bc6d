// Package project locates compiled contract artifacts inside a project
// directory laid out by brownie (build/contracts), hardhat (artifacts) or
// foundry (out).
package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
)

const artifactCacheSize = 64

type Project struct {
	dir   string
	cache *lru.Cache[string, *Artifact]
}

// Open returns the project rooted at dir.
func Open(dir string) (*Project, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", dir)
	}
	cache, err := lru.New[string, *Artifact](artifactCacheSize)
	if err != nil {
		return nil, err
	}
	return &Project{dir: dir, cache: cache}, nil
}

func (p *Project) Dir() string {
	return p.dir
}

// Artifact returns the compiled artifact of the named contract.
func (p *Project) Artifact(name string) (*Artifact, error) {
	if artifact, ok := p.cache.Get(name); ok {
		return artifact, nil
	}

	path, err := p.find(name)
	if err != nil {
		return nil, err
	}
	artifact, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	if artifact.ContractName == "" {
		artifact.ContractName = name
	}
	p.cache.Add(name, artifact)
	return artifact, nil
}

func (p *Project) find(name string) (string, error) {
	file := name + ".json"
	candidates := []string{
		filepath.Join(p.dir, "build", "contracts", file),
		filepath.Join(p.dir, "out", name+".sol", file),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	var found string
	errFound := errors.New("found")
	err := filepath.WalkDir(filepath.Join(p.dir, "artifacts"), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() && d.Name() == file {
			found = path
			return errFound
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	if err != nil && !errors.Is(err, errFound) {
		return "", fmt.Errorf("failed to search artifacts: %w", err)
	}
	return "", fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, p.dir)
}
