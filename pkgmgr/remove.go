package pkgmgr

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/meowpkg/meow/hook"
)

// Remove uninstalls name per §4.H: dependents check, pre/post hooks, and
// a reverse-manifest-order filesystem teardown ahead of the database
// commit.
func (m *Manager) Remove(name string) error {
	return m.remove(name, m.cfg.BreakDeps)
}

// remove is Remove with breakDeps supplied explicitly, so Sync's orphan
// removal can bypass the dependents check: an orphan is, by definition,
// outside the resolved set, and any package still depending on it would
// itself be part of that set.
func (m *Manager) remove(name string, breakDeps bool) error {
	if err := m.requireSuperuser(); err != nil {
		return err
	}

	target, found, err := m.db.GetPackage(name)
	if err != nil {
		return fmt.Errorf("reading package %q: %w", name, err)
	}
	if !found {
		return fmt.Errorf("%q is not installed", name)
	}

	all, err := m.db.ListPackages()
	if err != nil {
		return fmt.Errorf("reading installed packages: %w", err)
	}
	var dependents []string
	for _, p := range all {
		if p.Name == name {
			continue
		}
		for _, dep := range p.Depends {
			if dep == name {
				dependents = append(dependents, p.Name)
				break
			}
		}
	}
	if len(dependents) > 0 && !breakDeps {
		return fmt.Errorf("dependency: %q is required by %s", name, strings.Join(dependents, ", "))
	}

	if m.cfg.Root == "/" {
		if err := hook.Run(string(target.PreRemove), target.Version, ""); err != nil {
			return fmt.Errorf("pre_remove hook: %w", err)
		}
	}

	for i := len(target.Paths) - 1; i >= 0; i-- {
		full := filepath.Join(m.cfg.Root, target.Paths[i])
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) && !errors.Is(err, syscall.ENOTEMPTY) {
			return fmt.Errorf("removing %s: %w", target.Paths[i], err)
		}
	}

	if err := m.db.RemovePackage(name); err != nil {
		return fmt.Errorf("committing removal of %s: %w", name, err)
	}

	if m.cfg.Root == "/" {
		if err := hook.Run(string(target.PostRemove), target.Version, ""); err != nil {
			return fmt.Errorf("post_remove hook: %w", err)
		}
	}

	m.notify(EventRemoved{Name: name})
	return nil
}
