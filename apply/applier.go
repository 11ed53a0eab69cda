package apply

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/meowpkg/meow/meowzip"
)

var tmpNameCounter uint64

// tempSibling returns a name in the same directory as dest that does not
// collide with any concurrent call within this process. Installs are not
// expected to run concurrently (see design notes); the counter exists
// only to keep successive temp files within one run from colliding.
func tempSibling(dest string) string {
	n := atomic.AddUint64(&tmpNameCounter, 1)
	return fmt.Sprintf("%s.meowtmp-%d-%d", dest, os.Getpid(), n)
}

// Apply materializes entries' payload under root as packageName, in two
// passes per §4.E, and returns the entries that were actually written to
// disk by value (mode/uid/gid/checksum as installed) so the caller can
// persist them to the installed-package database.
//
// payload must be the archive's decompressed body stream, positioned at
// its start; Apply consumes it strictly in entries order, exactly size
// bytes per non-directory entry, even when an entry's content is
// discarded by the three-way merge.
func Apply(root, packageName string, entries []meowzip.FileEntry, payload io.Reader, lookup Lookup, listener Listener) ([]meowzip.FileEntry, error) {
	contexts := make([]PathContext, len(entries))
	for i, e := range entries {
		ctx, err := buildContext(root, e, lookup)
		if err != nil {
			return nil, fmt.Errorf("inspecting %s: %w", e.Path, err)
		}
		contexts[i] = ctx
	}
	for _, ctx := range contexts {
		if err := checkConflict(ctx, packageName); err != nil {
			return nil, err
		}
	}

	for _, ctx := range contexts {
		if ctx.Entry.FileType() == meowzip.TypeDirectory {
			if err := applyDirectory(root, ctx, listener); err != nil {
				return nil, fmt.Errorf("applying directory %s: %w", ctx.Entry.Path, err)
			}
		}
	}

	installed := make([]meowzip.FileEntry, 0, len(entries))
	for _, ctx := range contexts {
		switch ctx.Entry.FileType() {
		case meowzip.TypeDirectory:
			installed = append(installed, ctx.Entry)
		case meowzip.TypeSymlink:
			if err := applySymlink(root, ctx, payload, listener); err != nil {
				return nil, fmt.Errorf("applying symlink %s: %w", ctx.Entry.Path, err)
			}
			installed = append(installed, ctx.Entry)
		case meowzip.TypeRegular:
			wrote, err := applyRegular(root, ctx, payload, listener)
			if err != nil {
				return nil, fmt.Errorf("applying file %s: %w", ctx.Entry.Path, err)
			}
			if wrote {
				installed = append(installed, ctx.Entry)
			}
		default:
			return nil, fmt.Errorf("entry %s: unsupported filetype", ctx.Entry.Path)
		}
	}
	return installed, nil
}

func applyDirectory(root string, ctx PathContext, listener Listener) error {
	full := ctx.FullPath(root)
	if oldFt, exists := ctx.oldFiletype(); exists && oldFt != meowzip.TypeDirectory {
		if err := os.Remove(full); err != nil {
			return err
		}
	} else if !exists {
		if err := os.Mkdir(full, os.FileMode(ctx.Entry.Perm())); err != nil && !os.IsExist(err) {
			return err
		}
	}
	if err := os.Chown(full, int(ctx.Entry.UID), int(ctx.Entry.GID)); err != nil {
		return err
	}
	if err := os.Chmod(full, os.FileMode(ctx.Entry.Perm())); err != nil {
		return err
	}
	notify(listener, EventInstalled{Path: ctx.Entry.Path, Kind: "directory"})
	return nil
}

func applySymlink(root string, ctx PathContext, payload io.Reader, listener Listener) error {
	full := ctx.FullPath(root)
	if oldFt, exists := ctx.oldFiletype(); exists && oldFt == meowzip.TypeDirectory {
		if err := os.RemoveAll(full); err != nil {
			return err
		}
	} else if exists {
		if err := os.Remove(full); err != nil {
			return err
		}
	}

	target := make([]byte, ctx.Entry.Size)
	if _, err := io.ReadFull(payload, target); err != nil {
		return fmt.Errorf("reading symlink target: %w", err)
	}

	tmp := tempSibling(full)
	if err := os.Symlink(string(target), tmp); err != nil {
		return err
	}
	if err := os.Lchown(tmp, int(ctx.Entry.UID), int(ctx.Entry.GID)); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return err
	}
	notify(listener, EventInstalled{Path: ctx.Entry.Path, Kind: "symlink"})
	return nil
}

// applyRegular returns wrote=true if it wrote the manifest entry's
// content to its own path (overwrite), false if the three-way merge
// discarded it or diverted it to a sidecar.
func applyRegular(root string, ctx PathContext, payload io.Reader, listener Listener) (bool, error) {
	full := ctx.FullPath(root)

	if oldFt, exists := ctx.oldFiletype(); exists && oldFt == meowzip.TypeDirectory {
		if err := os.RemoveAll(full); err != nil {
			return false, err
		}
		ctx.OldMeta = nil
	}

	var org, cur uint64
	if ctx.HasRecord {
		org = ctx.OldRecord.Checksum
	}
	if _, exists := ctx.oldFiletype(); exists {
		f, err := os.Open(full)
		if err != nil {
			return false, err
		}
		h, err := meowzip.Checksum(f)
		f.Close()
		if err != nil {
			return false, err
		}
		cur = h
	}

	action := decideMerge(org, cur, ctx.Entry.Checksum)

	switch action {
	case actionDiscard:
		if _, err := io.CopyN(io.Discard, payload, int64(ctx.Entry.Size)); err != nil {
			return false, fmt.Errorf("discarding payload: %w", err)
		}
		notify(listener, EventDiscarded{Path: ctx.Entry.Path})
		return false, nil

	case actionOverwrite:
		if err := writeAtomic(full, ctx.Entry, payload); err != nil {
			return false, err
		}
		notify(listener, EventInstalled{Path: ctx.Entry.Path, Kind: "regular"})
		return true, nil

	case actionSidecar:
		sidecar, err := sidecarPath(full)
		if err != nil {
			return false, err
		}
		if err := writeAtomic(sidecar, ctx.Entry, payload); err != nil {
			return false, err
		}
		notify(listener, EventSidecar{Dest: full, Sidecar: sidecar})
		return false, nil

	default:
		return false, fmt.Errorf("unreachable merge action")
	}
}

func writeAtomic(dest string, entry meowzip.FileEntry, payload io.Reader) error {
	tmp := tempSibling(dest)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(entry.Perm()))
	if err != nil {
		return err
	}
	if _, err := io.CopyN(f, payload, int64(entry.Size)); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing body: %w", err)
	}
	if err := os.Chown(tmp, int(entry.UID), int(entry.GID)); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
