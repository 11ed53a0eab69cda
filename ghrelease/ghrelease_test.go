package ghrelease

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFetcherFetchWritesDest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "archive-bytes")
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "hello-1.0-1.mz")
	var f Fetcher
	if err := f.Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "archive-bytes" {
		t.Errorf("got %q", got)
	}
}

func TestFetcherFetchRejectsNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var f Fetcher
	err := f.Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out.mz"))
	if err == nil {
		t.Error("expected error for 404 response")
	}
}
