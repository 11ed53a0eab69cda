// Package manifest provides functionality to define and build meowzip
// archives using declarative configuration files.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meowpkg/meow/meowzip"
	"go.yaml.in/yaml/v3"
)

// NewBuild loads and parses a Build configuration from the specified file
// path. It supports both JSON and YAML formats based on the file extension.
func NewBuild(path string) (*Build, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read buildfile: %w", err)
	}

	var b Build
	if err := unmarshal(path, content, &b); err != nil {
		return nil, fmt.Errorf("failed to parse buildfile: %w", err)
	}

	b.filePath = path
	b.engine, err = newVarResolver(b.Defines)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize template engine: %w", err)
	}

	if b.Path == "" {
		return nil, fmt.Errorf("buildfile must specify 'path'")
	}
	return &b, nil
}

// Build represents the configuration for a batch of meowzip archives: an
// output directory and the list of package definition files to compile
// into it. Each archive is independent — there is no shared index, unlike
// an APT-style repository.
type Build struct {
	// Path is the directory path where the built archives will be written.
	Path string `json:"path" yaml:"path"`
	// Defines is a map of global variables available to templates.
	Defines map[string]string `json:"defines" yaml:"defines"`
	// Packages is a list of paths to package definition files to build.
	Packages []string `json:"packages" yaml:"packages"`

	filePath string
	engine   *varResolver
}

// LoadPackages reads and parses all package definition files listed in the
// configuration. It resolves paths relative to the Build file and
// initializes template engines for each package.
func (b *Build) LoadPackages() ([]Package, error) {
	var pkgs []Package

	for _, pkgFileRaw := range b.Packages {
		pkgFile, err := b.engine.render("package-list", pkgFileRaw)
		if err != nil {
			return nil, fmt.Errorf("rendering package path %q: %w", pkgFileRaw, err)
		}
		pkgPath := b.resolve(pkgFile)

		if strings.HasSuffix(strings.ToLower(pkgPath), ".deb") {
			eng, err := b.engine.child(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create engine for %s: %w", pkgPath, err)
			}
			pkgs = append(pkgs, Package{Input: pkgPath, filePath: pkgPath, engine: eng})
			continue
		}

		pkgContent, err := b.loadResource(pkgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read package definition %s: %v", pkgPath, err)
		}

		var pkg Package
		if err := unmarshal(pkgFile, []byte(pkgContent), &pkg); err != nil {
			return nil, fmt.Errorf("failed to parse package definition %s: %v", pkgPath, err)
		}

		pkg.engine, err = b.engine.child(pkg.Defines)
		if err != nil {
			return nil, fmt.Errorf("failed to process defines for %s: %w", pkgPath, err)
		}
		pkg.filePath = pkgPath
		pkgs = append(pkgs, pkg)
	}

	return pkgs, nil
}

// Compile orchestrates the build process: it loads every package
// definition, renders it into a meowzip.Metadata and payload, and writes
// the resulting archive (optionally signed) under Path.
func (b *Build) Compile(signer meowzip.Signer, l Listener) error {
	if l == nil {
		l = func(fmt.Stringer) {}
	}

	pkgs, err := b.LoadPackages()
	if err != nil {
		return fmt.Errorf("failed to load packages: %w", err)
	}

	outDir := b.resolve(b.Path)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for _, pkg := range pkgs {
		meta, bodies, err := pkg.Apply()
		if err != nil {
			return fmt.Errorf("failed to apply package %q: %w", pkg.filePath, err)
		}

		l(EventArchiveBuildSuccess{
			FilePath: pkg.filePath,
			Name:     meta.Name,
			Version:  meta.Version,
			Release:  meta.Release,
		})

		fullname := fmt.Sprintf("%s-%s-%d.mz", meta.Name, meta.Version, meta.Release)
		dst := filepath.Join(outDir, fullname)
		if err := meowzip.Create(dst, meta, bodies, signer); err != nil {
			return fmt.Errorf("writing archive %s: %w", fullname, err)
		}

		l(EventArchiveWrite{Name: meta.Name, Version: meta.Version, Release: meta.Release})
	}

	l(EventBuildSaveSuccess{Path: b.Path})
	return nil
}

func (b *Build) resolve(path string) string {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return filepath.Join(filepath.Dir(b.filePath), path)
}

func (b *Build) loadResource(path string) (string, error) {
	resolved := b.resolve(path)
	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// unmarshal parses JSON or YAML based on file extension.
func unmarshal(path string, data []byte, v interface{}) error {
	ext := strings.ToLower(filepath.Ext(path))
	r := bytes.NewReader(data)
	if ext == ".yaml" || ext == ".yml" {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		return dec.Decode(v)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
