package debimport

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/blakesmith/ar"
	"github.com/meowpkg/meow/meowzip"
)

// buildTestDeb assembles a minimal but well-formed .deb (ar container of
// debian-binary, control.tar.gz, data.tar.gz) for exercising Convert,
// without depending on any production .deb-writing code.
func buildTestDeb(t *testing.T) []byte {
	t.Helper()

	control := "Package: hello\nVersion: 1.0-1\nDepends: libc6 (>= 2.31), libssl3\n"
	controlTarGz := tarGz(t, map[string]tarEntry{
		"./control": {mode: 0644, body: control},
	})

	dataTarGz := tarGz(t, map[string]tarEntry{
		"./usr/bin/hello": {mode: 0755, body: "#!/bin/sh\necho hi\n"},
	})

	var buf bytes.Buffer
	arW := ar.NewWriter(&buf)
	if err := arW.WriteGlobalHeader(); err != nil {
		t.Fatalf("ar global header: %v", err)
	}
	for _, m := range []struct {
		name string
		body []byte
	}{
		{"debian-binary", []byte("2.0\n")},
		{"control.tar.gz", controlTarGz},
		{"data.tar.gz", dataTarGz},
	} {
		if err := arW.WriteHeader(&ar.Header{Name: m.name, Size: int64(len(m.body)), Mode: 0644}); err != nil {
			t.Fatalf("ar header %s: %v", m.name, err)
		}
		if _, err := arW.Write(m.body); err != nil {
			t.Fatalf("ar write %s: %v", m.name, err)
		}
	}
	return buf.Bytes()
}

type tarEntry struct {
	mode int64
	body string
}

func tarGz(t *testing.T, entries map[string]tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, e := range entries {
		if err := tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(e.body)), Mode: e.mode}); err != nil {
			t.Fatalf("tar header %s: %v", name, err)
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			t.Fatalf("tar write %s: %v", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func TestConvertProducesInstallableMetadata(t *testing.T) {
	data := buildTestDeb(t)

	meta, bodies, err := Convert(bytes.NewReader(data), "Test <test@example.com>")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if meta.Name != "hello" || meta.Version != "1.0-1" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if len(meta.Depends) != 2 || meta.Depends[0] != "libc6" || meta.Depends[1] != "libssl3" {
		t.Errorf("unexpected depends (version constraints should be stripped): %v", meta.Depends)
	}

	var found meowzip.FileEntry
	for _, e := range meta.Files {
		if e.Path == "/usr/bin/hello" {
			found = e
		}
	}
	if found.Path == "" {
		t.Fatal("expected /usr/bin/hello in manifest")
	}
	if found.FileType() != meowzip.TypeRegular {
		t.Errorf("expected regular file type, got %v", found.FileType())
	}

	r, err := bodies(found)
	if err != nil {
		t.Fatalf("bodies: %v", err)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "#!/bin/sh\necho hi\n" {
		t.Errorf("unexpected body: %q", content)
	}

	sawUsr, sawUsrBin := false, false
	for _, e := range meta.Files {
		switch e.Path {
		case "/usr":
			sawUsr = true
		case "/usr/bin":
			sawUsrBin = true
		}
	}
	if !sawUsr || !sawUsrBin {
		t.Errorf("expected synthesized parent directories, got %+v", meta.Files)
	}
}
