package fetch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func fakeWget(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-wget.sh")
	script := `#!/bin/sh
while [ "$1" != "-O" ]; do shift; done
shift
dest=$1
shift
url=$1
echo "fetched:$url" > "$dest"
`
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWgetFetchWritesDest(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.mz")
	w := Wget{Binary: fakeWget(t)}
	if err := w.Fetch(context.Background(), "https://example.invalid/hello.mz", dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "fetched:https://example.invalid/hello.mz\n" {
		t.Errorf("got %q", got)
	}
}

func TestWgetFetchFailure(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.mz")
	w := Wget{Binary: "/nonexistent/wget-binary"}
	if err := w.Fetch(context.Background(), "https://example.invalid/hello.mz", dest); err == nil {
		t.Error("expected error for missing binary")
	}
}
