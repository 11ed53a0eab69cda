package store

import (
	"bytes"
	"fmt"

	"github.com/meowpkg/meow/meowzip"
	"github.com/meowpkg/meow/wire"
)

// PackageRecord is the PACKAGES-table row: everything about an installed
// package except its per-file attributes, which live in the FILES table
// keyed by path so a lookup by path never has to deserialize a whole
// package. Only the list of paths is kept here.
type PackageRecord struct {
	Name    string
	Version string
	Release uint64

	Packager string
	License  string
	Depends  []string

	PreInstall  []byte
	PostInstall []byte
	PreRemove   []byte
	PostRemove  []byte

	// Paths lists every path this package owns, in the same
	// parents-before-children order as the archive manifest, so removal
	// can walk it in reverse without a separate sort.
	Paths []string
}

// FileRecord is the FILES-table row: one installed path's on-disk
// attributes plus the name of the package that owns it.
type FileRecord struct {
	Owner string
	meowzip.FileEntry
}

// NewPackageRecord builds a PackageRecord from archive metadata, recording
// path ownership for the FILES table.
func NewPackageRecord(m meowzip.Metadata) PackageRecord {
	paths := make([]string, len(m.Files))
	for i, e := range m.Files {
		paths[i] = e.Path
	}
	return PackageRecord{
		Name:        m.Name,
		Version:     m.Version,
		Release:     m.Release,
		Packager:    m.Packager,
		License:     m.License,
		Depends:     m.Depends,
		PreInstall:  m.PreInstall,
		PostInstall: m.PostInstall,
		PreRemove:   m.PreRemove,
		PostRemove:  m.PostRemove,
		Paths:       paths,
	}
}

func encodePackageRecord(p PackageRecord) ([]byte, error) {
	var buf bytes.Buffer
	fields := []string{p.Name, p.Version}
	for _, s := range fields {
		if err := wire.WriteString(&buf, s); err != nil {
			return nil, err
		}
	}
	if err := wire.WriteUint64(&buf, p.Release); err != nil {
		return nil, err
	}
	strs := []string{p.Packager, p.License}
	for _, s := range strs {
		if err := wire.WriteString(&buf, s); err != nil {
			return nil, err
		}
	}
	if err := wire.WriteUint64(&buf, uint64(len(p.Depends))); err != nil {
		return nil, err
	}
	for _, d := range p.Depends {
		if err := wire.WriteString(&buf, d); err != nil {
			return nil, err
		}
	}
	for _, b := range [][]byte{p.PreInstall, p.PostInstall, p.PreRemove, p.PostRemove} {
		if err := wire.WriteBytes(&buf, b); err != nil {
			return nil, err
		}
	}
	if err := wire.WriteUint64(&buf, uint64(len(p.Paths))); err != nil {
		return nil, err
	}
	for _, p := range p.Paths {
		if err := wire.WriteString(&buf, p); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodePackageRecord(data []byte) (PackageRecord, error) {
	var p PackageRecord
	r := bytes.NewReader(data)
	var err error

	if p.Name, err = wire.ReadString(r); err != nil {
		return p, fmt.Errorf("name: %w", err)
	}
	if p.Version, err = wire.ReadString(r); err != nil {
		return p, fmt.Errorf("version: %w", err)
	}
	if p.Release, err = wire.ReadUint64(r); err != nil {
		return p, fmt.Errorf("release: %w", err)
	}
	if p.Packager, err = wire.ReadString(r); err != nil {
		return p, fmt.Errorf("packager: %w", err)
	}
	if p.License, err = wire.ReadString(r); err != nil {
		return p, fmt.Errorf("license: %w", err)
	}

	n, err := wire.ReadUint64(r)
	if err != nil {
		return p, fmt.Errorf("depends count: %w", err)
	}
	p.Depends = make([]string, n)
	for i := range p.Depends {
		if p.Depends[i], err = wire.ReadString(r); err != nil {
			return p, fmt.Errorf("depends[%d]: %w", i, err)
		}
	}

	hooks := make([][]byte, 4)
	for i := range hooks {
		if hooks[i], err = wire.ReadBytes(r); err != nil {
			return p, fmt.Errorf("hook %d: %w", i, err)
		}
	}
	p.PreInstall, p.PostInstall, p.PreRemove, p.PostRemove = hooks[0], hooks[1], hooks[2], hooks[3]

	n, err = wire.ReadUint64(r)
	if err != nil {
		return p, fmt.Errorf("paths count: %w", err)
	}
	p.Paths = make([]string, n)
	for i := range p.Paths {
		if p.Paths[i], err = wire.ReadString(r); err != nil {
			return p, fmt.Errorf("paths[%d]: %w", i, err)
		}
	}
	return p, nil
}

func encodeFileRecord(f FileRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteString(&buf, f.Owner); err != nil {
		return nil, err
	}
	if err := wire.WriteString(&buf, f.Path); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(&buf, f.Size); err != nil {
		return nil, err
	}
	if err := wire.WriteUint32(&buf, f.Mode); err != nil {
		return nil, err
	}
	if err := wire.WriteUint32(&buf, f.UID); err != nil {
		return nil, err
	}
	if err := wire.WriteUint32(&buf, f.GID); err != nil {
		return nil, err
	}
	if err := wire.WriteUint64(&buf, f.Checksum); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFileRecord(data []byte) (FileRecord, error) {
	var f FileRecord
	r := bytes.NewReader(data)
	var err error
	if f.Owner, err = wire.ReadString(r); err != nil {
		return f, fmt.Errorf("owner: %w", err)
	}
	if f.Path, err = wire.ReadString(r); err != nil {
		return f, fmt.Errorf("path: %w", err)
	}
	if f.Size, err = wire.ReadUint64(r); err != nil {
		return f, fmt.Errorf("size: %w", err)
	}
	if f.Mode, err = wire.ReadUint32(r); err != nil {
		return f, fmt.Errorf("mode: %w", err)
	}
	if f.UID, err = wire.ReadUint32(r); err != nil {
		return f, fmt.Errorf("uid: %w", err)
	}
	if f.GID, err = wire.ReadUint32(r); err != nil {
		return f, fmt.Errorf("gid: %w", err)
	}
	if f.Checksum, err = wire.ReadUint64(r); err != nil {
		return f, fmt.Errorf("checksum: %w", err)
	}
	return f, nil
}
