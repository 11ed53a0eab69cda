// Package debimport converts an existing Debian binary package into the
// metadata and payload shape meowzip.Create expects, so packages already
// built as .deb files can be repackaged as .mz archives without the
// source project adopting meowzip directly.
package debimport

import (
	"io"
	"sort"
	"strings"

	"github.com/meowpkg/meow/meowzip"
)

// Convert reads a .deb archive from r and returns the equivalent meowzip
// metadata plus a BodySource over its regular files. Depends entries carry
// over as bare names: deb version constraints ("libc6 (>= 2.31)") don't
// have a meowzip equivalent, so only the package name before the first
// space or parenthesis survives.
func Convert(r io.Reader, packager string) (meowzip.Metadata, meowzip.BodySource, error) {
	pkg, err := parseLegacyDeb(r)
	if err != nil {
		return meowzip.Metadata{}, nil, err
	}

	meta := meowzip.Metadata{
		Name:        pkg.Name,
		Version:     pkg.Version,
		Release:     1,
		Packager:    packager,
		License:     "",
		Depends:     bareNames(pkg.Depends),
		PreInstall:  []byte(pkg.PreInstall),
		PostInstall: []byte(pkg.PostInstall),
		PreRemove:   []byte(pkg.PreRemove),
		PostRemove:  []byte(pkg.PostRemove),
	}

	bodies := make(map[string]string, len(pkg.Files))
	dirs := map[string]bool{}
	for _, f := range pkg.Files {
		markParents(dirs, f.Path)
		meta.Files = append(meta.Files, meowzip.FileEntry{
			Path: f.Path,
			Size: uint64(len(f.Body)),
			Mode: meowzip.ModeRegular | uint32(f.Mode)&0777,
			UID:  0,
			GID:  0,
		})
		bodies[f.Path] = f.Body
	}
	meta.Files = append(meta.Files, directoryEntries(dirs)...)
	sort.Slice(meta.Files, func(i, j int) bool { return meta.Files[i].Path < meta.Files[j].Path })

	for i := range meta.Files {
		e := &meta.Files[i]
		if e.FileType() == meowzip.TypeRegular {
			e.Checksum = meowzip.ChecksumBytes([]byte(bodies[e.Path]))
		}
	}

	src := meowzip.BodySource(func(e meowzip.FileEntry) (io.Reader, error) {
		return strings.NewReader(bodies[e.Path]), nil
	})

	return meta, src, nil
}

func bareNames(depends []string) []string {
	if len(depends) == 0 {
		return nil
	}
	out := make([]string, 0, len(depends))
	for _, d := range depends {
		name := strings.TrimSpace(d)
		if i := strings.IndexAny(name, " ("); i >= 0 {
			name = name[:i]
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func markParents(dirs map[string]bool, path string) {
	for dir := parentOf(path); dir != "" && dir != "/"; dir = parentOf(dir) {
		if dirs[dir] {
			return
		}
		dirs[dir] = true
	}
}

func parentOf(path string) string {
	i := strings.LastIndex(strings.TrimSuffix(path, "/"), "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

func directoryEntries(dirs map[string]bool) []meowzip.FileEntry {
	out := make([]meowzip.FileEntry, 0, len(dirs))
	for d := range dirs {
		out = append(out, meowzip.FileEntry{Path: d, Mode: meowzip.ModeDir | 0755})
	}
	return out
}
