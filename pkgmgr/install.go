package pkgmgr

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/meowpkg/meow/apply"
	"github.com/meowpkg/meow/hook"
	"github.com/meowpkg/meow/meowzip"
	"github.com/meowpkg/meow/store"
)

// Install applies the archive at archivePath per §4.H: dependency and
// presence checks, conflict checks, the two-pass filesystem apply, then
// the database write transaction, with pre/post install hooks straddling
// it when operating on the live root.
func (m *Manager) Install(archivePath string) error {
	return m.install(archivePath, m.cfg.Overwrite, m.cfg.BreakDeps)
}

// install is Install with overwrite/breakDeps supplied explicitly, so
// Sync can force an overwrite for a deliberate upgrade-delta decision
// without mutating shared Config state.
func (m *Manager) install(archivePath string, overwrite, breakDeps bool) error {
	if err := m.requireSuperuser(); err != nil {
		return err
	}
	if strings.ToLower(filepath.Ext(archivePath)) != ".mz" {
		return fmt.Errorf("format: %s is not a .mz archive", archivePath)
	}

	r, err := meowzip.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	installedPkgs, err := m.db.ListPackages()
	if err != nil {
		return fmt.Errorf("reading installed packages: %w", err)
	}
	installedNames := make(map[string]bool, len(installedPkgs))
	for _, p := range installedPkgs {
		installedNames[p.Name] = true
	}

	var missing []string
	for _, dep := range r.Depends {
		if !installedNames[dep] {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 && !breakDeps {
		return fmt.Errorf("dependency: missing %s", strings.Join(missing, ", "))
	}

	existing, found, err := m.db.GetPackage(r.Name)
	if err != nil {
		return fmt.Errorf("reading package %q: %w", r.Name, err)
	}
	if found && !overwrite {
		return fmt.Errorf("%q is already installed (use --overwrite to upgrade)", r.Name)
	}
	oldVersion := ""
	if found {
		oldVersion = existing.Version
	}

	if m.cfg.Root == "/" {
		if err := hook.Run(string(r.PreInstall), oldVersion, r.Version); err != nil {
			return fmt.Errorf("pre_install hook: %w", err)
		}
	}

	installed, err := apply.Apply(m.cfg.Root, r.Name, r.Files, r.Payload(), dbLookup{m.db}, m.cfg.Listener)
	if err != nil {
		return fmt.Errorf("applying %s: %w", r.Name, err)
	}

	var staleFiles []string
	if found {
		newPaths := make(map[string]bool, len(r.Files))
		for _, e := range r.Files {
			newPaths[e.Path] = true
		}
		for i := len(existing.Paths) - 1; i >= 0; i-- {
			p := existing.Paths[i]
			if newPaths[p] {
				continue
			}
			full := filepath.Join(m.cfg.Root, p)
			if err := removeStalePath(full); err != nil {
				return fmt.Errorf("removing stale path %s: %w", p, err)
			}
			staleFiles = append(staleFiles, p)
		}
	}

	files := make([]store.FileRecord, 0, len(installed))
	for _, e := range installed {
		if e.FileType() == meowzip.TypeDirectory {
			continue
		}
		files = append(files, store.FileRecord{Owner: r.Name, FileEntry: e})
	}
	pkgRecord := store.NewPackageRecord(r.Metadata)
	if err := m.db.PutPackage(pkgRecord, files, staleFiles); err != nil {
		return fmt.Errorf("committing install of %s: %w", r.Name, err)
	}

	if m.cfg.Root == "/" {
		if err := hook.Run(string(r.PostInstall), oldVersion, r.Version); err != nil {
			return fmt.Errorf("post_install hook: %w", err)
		}
	}

	m.notify(EventInstalled{Name: r.Name, Version: r.Version, Release: r.Release, Upgrade: found, OldVersion: oldVersion})
	return nil
}

// removeStalePath deletes a path an upgrade no longer ships. Directories
// tolerate ENOTEMPTY (another still-shipped path may live under them).
func removeStalePath(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	if errors.Is(err, syscall.ENOTEMPTY) {
		return nil
	}
	return err
}
