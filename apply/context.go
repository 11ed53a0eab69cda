package apply

import (
	"os"
	"path/filepath"

	"github.com/meowpkg/meow/meowzip"
)

// OwnedFile is the subset of a FILES-table record the applier needs:
// which package owns a path and the checksum it last installed.
type OwnedFile struct {
	Owner    string
	Checksum uint64
}

// Lookup answers "who owns this path, and what did we last install
// there" from the installed-package database's read snapshot. Defined
// narrowly so apply never has to import package store.
type Lookup interface {
	Lookup(path string) (OwnedFile, bool, error)
}

// PathContext is the per-entry state the applier computes before
// deciding what to do with a manifest entry, per the filesystem
// applier's inputs.
type PathContext struct {
	Entry     meowzip.FileEntry
	OldRecord OwnedFile
	HasRecord bool
	OldMeta   os.FileInfo // nil if nothing exists at the rooted path
}

// FullPath joins root with the entry's absolute archive path.
func (c PathContext) FullPath(root string) string {
	return filepath.Join(root, c.Entry.Path)
}

// oldFiletype classifies OldMeta the same way Entry.FileType classifies
// an incoming entry's mode, or reports ok=false if nothing exists.
func (c PathContext) oldFiletype() (meowzip.FileType, bool) {
	if c.OldMeta == nil {
		return 0, false
	}
	switch {
	case c.OldMeta.Mode()&os.ModeSymlink != 0:
		return meowzip.TypeSymlink, true
	case c.OldMeta.IsDir():
		return meowzip.TypeDirectory, true
	default:
		return meowzip.TypeRegular, true
	}
}

// buildContext stats path (without following a trailing symlink) and
// consults lookup for path's current ownership.
func buildContext(root string, entry meowzip.FileEntry, lookup Lookup) (PathContext, error) {
	ctx := PathContext{Entry: entry}

	full := filepath.Join(root, entry.Path)
	meta, err := os.Lstat(full)
	if err == nil {
		ctx.OldMeta = meta
	} else if !os.IsNotExist(err) {
		return ctx, err
	}

	rec, found, err := lookup.Lookup(entry.Path)
	if err != nil {
		return ctx, err
	}
	ctx.OldRecord, ctx.HasRecord = rec, found
	return ctx, nil
}
