package pkgmgr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meowpkg/meow/meowzip"
	"github.com/meowpkg/meow/resolve"
	"github.com/meowpkg/meow/store"
	"go.yaml.in/yaml/v3"
)

// IndexEntry is one package's row in the fetched sync index: enough to
// resolve dependencies and locate the artifact.
type IndexEntry struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Release uint64   `yaml:"release"`
	Depends []string `yaml:"depends,omitempty"`
	// URL is the base URL the ".mz" and ".mz.minisig" suffixes are
	// appended to.
	URL string `yaml:"url"`
}

// Sync fetches indexURL, resolves requested against its transitive
// dependencies, and reconciles the installed set: upgrades/installs every
// needed package (each gated on signature verification) and removes
// every installed package outside the resolved set.
func (m *Manager) Sync(ctx context.Context, indexURL string, requested []string) error {
	if m.cfg.Verifier == nil {
		return fmt.Errorf("sync requires a configured Verifier")
	}

	entries, err := m.fetchIndex(ctx, indexURL)
	if err != nil {
		return fmt.Errorf("fetching index: %w", err)
	}

	index := resolve.Index{}
	urls := map[string]string{}
	for _, e := range entries {
		index[e.Name] = resolve.Manifest{Name: e.Name, Version: e.Version, Release: e.Release, Depends: e.Depends}
		urls[e.Name] = e.URL
	}

	resolved, err := resolve.Resolve(index, requested)
	if err != nil {
		return fmt.Errorf("resolving target set: %w", err)
	}

	installedPkgs, err := m.db.ListPackages()
	if err != nil {
		return fmt.Errorf("reading installed packages: %w", err)
	}
	installedNames := make([]string, len(installedPkgs))
	installedByName := map[string]bool{}
	for i, p := range installedPkgs {
		installedNames[i] = p.Name
		installedByName[p.Name] = true
	}

	delta := resolve.ComputeDelta(index, resolved, dbInstalledLookup{m.db}, installedNames)

	toApply := append(append([]string{}, delta.ToInstall...), delta.ToUpgrade...)
	tmpDir, err := os.MkdirTemp("", "meow-sync-*")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, name := range toApply {
		url, ok := urls[name]
		if !ok {
			return fmt.Errorf("index entry %q has no url", name)
		}
		e := index[name]
		fullname := fmt.Sprintf("%s-%s-%d", e.Name, e.Version, e.Release)

		archivePath := filepath.Join(tmpDir, fullname+".mz")
		if err := m.cfg.Fetcher.Fetch(ctx, url+"/"+fullname+".mz", archivePath); err != nil {
			return fmt.Errorf("fetching %s: %w", fullname, err)
		}
		sigPath := filepath.Join(tmpDir, fullname+".mz.minisig")
		if err := m.cfg.Fetcher.Fetch(ctx, url+"/"+fullname+".mz.minisig", sigPath); err != nil {
			return fmt.Errorf("fetching signature for %s: %w", fullname, err)
		}

		if err := m.verifyArtifact(archivePath, sigPath); err != nil {
			return fmt.Errorf("verifying %s: %w", fullname, err)
		}

		if err := m.install(archivePath, true, m.cfg.BreakDeps); err != nil {
			return fmt.Errorf("installing %s: %w", fullname, err)
		}
	}

	for _, name := range delta.Orphans {
		if err := m.remove(name, true); err != nil {
			return fmt.Errorf("removing orphan %s: %w", name, err)
		}
		m.notify(EventOrphanRemoved{Name: name})
	}

	return nil
}

func (m *Manager) fetchIndex(ctx context.Context, indexURL string) ([]IndexEntry, error) {
	tmp, err := os.CreateTemp("", "meow-index-*.yaml")
	if err != nil {
		return nil, err
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := m.cfg.Fetcher.Fetch(ctx, indexURL, path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []IndexEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	return entries, nil
}

func (m *Manager) verifyArtifact(archivePath, sigPath string) error {
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return fmt.Errorf("reading signature: %w", err)
	}
	r, err := meowzip.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	if err := m.cfg.Verifier.Verify(r.SignedRange(), sig); err != nil {
		return err
	}
	return nil
}

// dbInstalledLookup adapts *store.DB to resolve.InstalledLookup.
type dbInstalledLookup struct{ db *store.DB }

func (l dbInstalledLookup) Installed(name string) (string, uint64, bool) {
	rec, found, err := l.db.GetPackage(name)
	if err != nil || !found {
		return "", 0, false
	}
	return rec.Version, rec.Release, true
}
