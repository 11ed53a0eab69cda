package pkgmgr

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/meowpkg/meow/meowzip"
)

func buildArchive(t *testing.T, dst string, meta meowzip.Metadata, contents map[string]string) {
	t.Helper()
	bodies := func(e meowzip.FileEntry) (io.Reader, error) {
		return bytes.NewReader([]byte(contents[e.Path])), nil
	}
	if err := meowzip.Create(dst, meta, bodies, nil); err != nil {
		t.Fatalf("building test archive: %v", err)
	}
}

func openManager(t *testing.T, root string) *Manager {
	t.Helper()
	m, err := Open(Config{Root: root, Overwrite: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestInstallFreshArchive(t *testing.T) {
	root := t.TempDir()
	content := "#!/bin/sh\necho hi\n"
	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())

	meta := meowzip.Metadata{
		Name: "hello", Version: "1.0", Release: 1,
		Files: []meowzip.FileEntry{
			{Path: "/usr", Mode: meowzip.ModeDir | 0755, UID: uid, GID: gid},
			{Path: "/usr/bin", Mode: meowzip.ModeDir | 0755, UID: uid, GID: gid},
			{Path: "/usr/bin/hello", Mode: meowzip.ModeRegular | 0755, Size: uint64(len(content)), UID: uid, GID: gid, Checksum: meowzip.ChecksumBytes([]byte(content))},
		},
	}
	archivePath := filepath.Join(t.TempDir(), "hello-1.0-1.mz")
	buildArchive(t, archivePath, meta, map[string]string{"/usr/bin/hello": content})

	m := openManager(t, root)
	if err := m.Install(archivePath); err != nil {
		t.Fatalf("Install: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "usr/bin/hello"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != content {
		t.Errorf("got %q", got)
	}

	pkg, found, err := m.db.GetPackage("hello")
	if err != nil || !found {
		t.Fatalf("GetPackage: found=%v err=%v", found, err)
	}
	if pkg.Version != "1.0" {
		t.Errorf("version = %q", pkg.Version)
	}
}

func TestInstallRejectsDuplicateWithoutOverwrite(t *testing.T) {
	root := t.TempDir()
	meta := meowzip.Metadata{Name: "hello", Version: "1.0", Release: 1}
	archivePath := filepath.Join(t.TempDir(), "hello-1.0-1.mz")
	buildArchive(t, archivePath, meta, nil)

	m, err := Open(Config{Root: root})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if err := m.Install(archivePath); err != nil {
		t.Fatalf("first install: %v", err)
	}
	if err := m.Install(archivePath); err == nil {
		t.Error("expected error reinstalling without --overwrite")
	}
}

func TestInstallRejectsMissingDependency(t *testing.T) {
	root := t.TempDir()
	meta := meowzip.Metadata{Name: "app", Version: "1.0", Release: 1, Depends: []string{"libghost"}}
	archivePath := filepath.Join(t.TempDir(), "app-1.0-1.mz")
	buildArchive(t, archivePath, meta, nil)

	m := openManager(t, root)
	if err := m.Install(archivePath); err == nil {
		t.Error("expected dependency error")
	}
}

func TestUpgradeRemovesDroppedFile(t *testing.T) {
	root := t.TempDir()
	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())

	v1 := meowzip.Metadata{
		Name: "hello", Version: "1.0", Release: 1,
		Files: []meowzip.FileEntry{
			{Path: "/usr", Mode: meowzip.ModeDir | 0755, UID: uid, GID: gid},
			{Path: "/usr/bin", Mode: meowzip.ModeDir | 0755, UID: uid, GID: gid},
			{Path: "/usr/bin/hello", Mode: meowzip.ModeRegular | 0755, Size: 2, UID: uid, GID: gid, Checksum: meowzip.ChecksumBytes([]byte("hi"))},
			{Path: "/usr/share", Mode: meowzip.ModeDir | 0755, UID: uid, GID: gid},
			{Path: "/usr/share/hello", Mode: meowzip.ModeDir | 0755, UID: uid, GID: gid},
			{Path: "/usr/share/hello/README", Mode: meowzip.ModeRegular | 0644, Size: 4, UID: uid, GID: gid, Checksum: meowzip.ChecksumBytes([]byte("read"))},
		},
	}
	archive1 := filepath.Join(t.TempDir(), "hello-1.0-1.mz")
	buildArchive(t, archive1, v1, map[string]string{"/usr/bin/hello": "hi", "/usr/share/hello/README": "read"})

	m := openManager(t, root)
	if err := m.Install(archive1); err != nil {
		t.Fatalf("install v1: %v", err)
	}

	v2content := "hi2"
	v2 := meowzip.Metadata{
		Name: "hello", Version: "1.1", Release: 1,
		Files: []meowzip.FileEntry{
			{Path: "/usr", Mode: meowzip.ModeDir | 0755, UID: uid, GID: gid},
			{Path: "/usr/bin", Mode: meowzip.ModeDir | 0755, UID: uid, GID: gid},
			{Path: "/usr/bin/hello", Mode: meowzip.ModeRegular | 0755, Size: uint64(len(v2content)), UID: uid, GID: gid, Checksum: meowzip.ChecksumBytes([]byte(v2content))},
		},
	}
	archive2 := filepath.Join(t.TempDir(), "hello-1.1-1.mz")
	buildArchive(t, archive2, v2, map[string]string{"/usr/bin/hello": v2content})

	if err := m.Install(archive2); err != nil {
		t.Fatalf("install v2: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "usr/share/hello/README")); !os.IsNotExist(err) {
		t.Errorf("expected README removed, stat error = %v", err)
	}
	if _, found, _ := m.db.GetFile("/usr/share/hello/README"); found {
		t.Error("expected FILES row removed for README")
	}
	got, err := os.ReadFile(filepath.Join(root, "usr/bin/hello"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != v2content {
		t.Errorf("got %q, want %q", got, v2content)
	}
}
