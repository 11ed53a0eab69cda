package pkgmgr

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/meowpkg/meow/meowzip"
)

type memFetcher map[string][]byte

func (f memFetcher) Fetch(ctx context.Context, url, dest string) error {
	data, ok := f[url]
	if !ok {
		return os.ErrNotExist
	}
	return os.WriteFile(dest, data, 0644)
}

func genKeypair(t *testing.T, name string) (priv, pub []byte) {
	t.Helper()
	entity, err := openpgp.NewEntity(name, "", name+"@example.com", nil)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	var privBuf, pubBuf bytes.Buffer

	w, err := armor.Encode(&privBuf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		t.Fatal(err)
	}
	w.Close()

	w, err = armor.Encode(&pubBuf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := entity.Serialize(w); err != nil {
		t.Fatal(err)
	}
	w.Close()

	return privBuf.Bytes(), pubBuf.Bytes()
}

func buildSignedArchiveBytes(t *testing.T, meta meowzip.Metadata, contents map[string]string, priv []byte) []byte {
	t.Helper()
	signer, err := meowzip.NewSigner(priv, nil)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	dst := t.TempDir() + "/" + meta.Filename()
	bodies := func(e meowzip.FileEntry) (io.Reader, error) {
		return bytes.NewReader([]byte(contents[e.Path])), nil
	}
	if err := meowzip.Create(dst, meta, bodies, signer); err != nil {
		t.Fatalf("Create: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func detachSignature(t *testing.T, archiveBytes []byte, priv []byte) []byte {
	t.Helper()
	r, err := meowzip.Open(writeTemp(t, archiveBytes))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	signer, err := meowzip.NewSigner(priv, nil)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := signer.Sign(r.SignedRange())
	if err != nil {
		t.Fatal(err)
	}
	return sig
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "archive-*.mz")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return f.Name()
}

func TestSyncInstallsFromIndex(t *testing.T) {
	root := t.TempDir()
	priv, pub := genKeypair(t, "packager")

	meta := meowzip.Metadata{Name: "hello", Version: "1.0", Release: 1}
	archiveBytes := buildSignedArchiveBytes(t, meta, nil, priv)
	sigBytes := detachSignature(t, archiveBytes, priv)

	indexYAML := []byte(`
- name: hello
  version: "1.0"
  release: 1
  url: mem://repo
`)

	fetcher := memFetcher{
		"mem://index.yaml":            indexYAML,
		"mem://repo/hello-1.0-1.mz":         archiveBytes,
		"mem://repo/hello-1.0-1.mz.minisig": sigBytes,
	}

	verifier, err := meowzip.NewVerifier([][]byte{pub})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	m, err := Open(Config{Root: root, Fetcher: fetcher, Verifier: verifier})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if err := m.Sync(context.Background(), "mem://index.yaml", []string{"hello"}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if _, found, _ := m.db.GetPackage("hello"); !found {
		t.Error("expected hello to be installed after sync")
	}
}

func TestSyncRejectsBadSignature(t *testing.T) {
	root := t.TempDir()
	priv, _ := genKeypair(t, "packager")
	_, untrustedPub := genKeypair(t, "attacker")

	meta := meowzip.Metadata{Name: "hello", Version: "1.0", Release: 1}
	archiveBytes := buildSignedArchiveBytes(t, meta, nil, priv)
	sigBytes := detachSignature(t, archiveBytes, priv)

	indexYAML := []byte(`
- name: hello
  version: "1.0"
  release: 1
  url: mem://repo
`)
	fetcher := memFetcher{
		"mem://index.yaml":            indexYAML,
		"mem://repo/hello-1.0-1.mz":         archiveBytes,
		"mem://repo/hello-1.0-1.mz.minisig": sigBytes,
	}

	// verifier only trusts a key the signature was never produced with
	verifier, err := meowzip.NewVerifier([][]byte{untrustedPub})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	m, err := Open(Config{Root: root, Fetcher: fetcher, Verifier: verifier})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if err := m.Sync(context.Background(), "mem://index.yaml", []string{"hello"}); err == nil {
		t.Fatal("expected signature verification failure")
	}
	if _, found, _ := m.db.GetPackage("hello"); found {
		t.Error("expected hello NOT installed after failed verification")
	}
}

func TestSyncRemovesOrphans(t *testing.T) {
	root := t.TempDir()
	priv, pub := genKeypair(t, "packager")

	m, err := Open(Config{Root: root, Overwrite: true, Verifier: mustVerifier(t, pub)})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	orphanArchive := writeTemp(t, buildSignedArchiveBytes(t, meowzip.Metadata{Name: "orphan", Version: "1.0", Release: 1}, nil, priv))
	if err := m.Install(orphanArchive); err != nil {
		t.Fatalf("install orphan: %v", err)
	}

	helloBytes := buildSignedArchiveBytes(t, meowzip.Metadata{Name: "hello", Version: "1.0", Release: 1}, nil, priv)
	helloSig := detachSignature(t, helloBytes, priv)
	indexYAML := []byte(`
- name: hello
  version: "1.0"
  release: 1
  url: mem://repo
`)
	m.cfg.Fetcher = memFetcher{
		"mem://index.yaml":            indexYAML,
		"mem://repo/hello-1.0-1.mz":         helloBytes,
		"mem://repo/hello-1.0-1.mz.minisig": helloSig,
	}

	if err := m.Sync(context.Background(), "mem://index.yaml", []string{"hello"}); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	if _, found, _ := m.db.GetPackage("orphan"); found {
		t.Error("expected orphan package removed by sync")
	}
	if _, found, _ := m.db.GetPackage("hello"); !found {
		t.Error("expected hello installed by sync")
	}
}

func mustVerifier(t *testing.T, pub []byte) meowzip.Verifier {
	t.Helper()
	v, err := meowzip.NewVerifier([][]byte{pub})
	if err != nil {
		t.Fatal(err)
	}
	return v
}
