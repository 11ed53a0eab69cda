package pkgmgr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/meowpkg/meow/apply"
	"github.com/meowpkg/meow/fetch"
	"github.com/meowpkg/meow/meowzip"
	"github.com/meowpkg/meow/store"
)

// Config threads every call site's dependencies explicitly; pkgmgr keeps
// no package-level mutable state.
type Config struct {
	// Root is the target filesystem root, e.g. "/" or a chroot-like path
	// used in tests.
	Root string

	// Overwrite allows installing over an already-installed package.
	Overwrite bool
	// BreakDeps allows installing despite missing dependencies, or
	// removing despite present dependents.
	BreakDeps bool

	// Verifier validates a sync-fetched archive's signature. Sync refuses
	// to run when it is nil; Install and Remove do not consult it.
	Verifier meowzip.Verifier
	// Fetcher retrieves remote index and archive files for sync. Nil
	// defaults to Wget.
	Fetcher fetch.Fetcher

	Logger   hclog.Logger
	Listener apply.Listener
}

// Manager is the orchestrator: one instance per target root, holding the
// open installed-package database for the duration of a command.
type Manager struct {
	cfg Config
	db  *store.DB
}

// Open opens the installed-package database under cfg.Root and returns a
// Manager ready to run install/remove/sync. The caller must call Close.
func Open(cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = fetch.NewWget()
	}
	dbPath := filepath.Join(cfg.Root, store.DefaultPath)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening installed-package database: %w", err)
	}
	return &Manager{cfg: cfg, db: db}, nil
}

// Close releases the installed-package database.
func (m *Manager) Close() error {
	return m.db.Close()
}

// requireSuperuser enforces §4.H's "require superuser" precondition, only
// when operating on the live root — tests running against a scratch root
// are exempt, matching the teacher's treatment of root-only effects as a
// conditional rather than a hard assumption.
func (m *Manager) requireSuperuser() error {
	if m.cfg.Root != "/" {
		return nil
	}
	if os.Geteuid() != 0 {
		return fmt.Errorf("permission: superuser required for operations on /")
	}
	return nil
}

// ListInstalled returns every installed package's record, for the "list"
// and "info" CLI commands.
func (m *Manager) ListInstalled() ([]store.PackageRecord, error) {
	return m.db.ListPackages()
}

// Installed looks up one package's record by name.
func (m *Manager) Installed(name string) (store.PackageRecord, bool, error) {
	return m.db.GetPackage(name)
}

// FileInfo looks up one tracked path's record, for size/attribute reporting.
func (m *Manager) FileInfo(path string) (store.FileRecord, bool, error) {
	return m.db.GetFile(path)
}

// dbLookup adapts *store.DB to apply.Lookup.
type dbLookup struct{ db *store.DB }

func (l dbLookup) Lookup(path string) (apply.OwnedFile, bool, error) {
	rec, found, err := l.db.GetFile(path)
	if err != nil || !found {
		return apply.OwnedFile{}, found, err
	}
	return apply.OwnedFile{Owner: rec.Owner, Checksum: rec.Checksum}, true, nil
}
