package meowzip

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/meowpkg/meow/wire"
)

const (
	magicHeader   = "MEOW"
	magicPayload  = "ZSTD"
	trailerLength = 8 // the trailing u64 signature length
)

// BodySource supplies the payload bytes for one manifest entry, in the
// order Metadata.Files lists them. For directories it is never called.
// For symlinks it must return the link target as a reader over exactly
// FileEntry.Size bytes.
type BodySource func(e FileEntry) (io.Reader, error)

// Create builds a meowzip archive at dst from meta and the bodies
// BodySource supplies, signs the result with signer, and installs it
// atomically (write to a temp file on the same directory, then rename).
//
// Grounded on deb.Package.WriteTo's "build the inner archive, then wrap
// it" staging, generalized from the ar/tar/gzip stack to meowzip's
// big-endian header plus a real zstd codec.
func Create(dst string, meta Metadata, bodies BodySource, signer Signer) error {
	tmp, err := os.CreateTemp(dirOf(dst), ".meowzip-*")
	if err != nil {
		return fmt.Errorf("creating temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		os.Remove(tmpPath)
	}()

	if err := writeHeader(tmp, meta); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := wire.WriteMagic(tmp, magicPayload); err != nil {
		return err
	}

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	for i, e := range meta.Files {
		if e.FileType() == TypeDirectory {
			continue
		}
		r, err := bodies(e)
		if err != nil {
			return fmt.Errorf("reading body for manifest entry %d (%s): %w", i, e.Path, err)
		}
		n, err := io.Copy(zw, io.LimitReader(r, int64(e.Size)))
		if err != nil {
			return fmt.Errorf("writing body for manifest entry %d (%s): %w", i, e.Path, err)
		}
		if uint64(n) != e.Size {
			return fmt.Errorf("manifest entry %d (%s): body is %d bytes, want %d", i, e.Path, n, e.Size)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}

	if signer != nil {
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seeking to sign: %w", err)
		}
		sig, err := signer.Sign(tmp)
		if err != nil {
			return fmt.Errorf("signing archive: %w", err)
		}
		if _, err := tmp.Seek(0, io.SeekEnd); err != nil {
			return fmt.Errorf("seeking to append signature: %w", err)
		}
		if _, err := tmp.Write(sig); err != nil {
			return fmt.Errorf("appending signature: %w", err)
		}
		if err := wire.WriteUint64(tmp, uint64(len(sig))); err != nil {
			return fmt.Errorf("appending signature length: %w", err)
		}
	} else {
		if err := wire.WriteUint64(tmp, 0); err != nil {
			return err
		}
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("installing archive at %s: %w", dst, err)
	}
	return nil
}

func writeHeader(w io.Writer, m Metadata) error {
	if err := wire.WriteMagic(w, magicHeader); err != nil {
		return err
	}
	fields := []string{m.Name, m.Version}
	for _, s := range fields {
		if err := wire.WriteString(w, s); err != nil {
			return err
		}
	}
	if err := wire.WriteUint64(w, m.Release); err != nil {
		return err
	}
	strs := []string{m.Packager, m.License, m.DependsString()}
	for _, s := range strs {
		if err := wire.WriteString(w, s); err != nil {
			return err
		}
	}
	for _, b := range [][]byte{m.PreInstall, m.PostInstall, m.PreRemove, m.PostRemove} {
		if err := wire.WriteBytes(w, b); err != nil {
			return err
		}
	}
	if err := wire.WriteUint64(w, uint64(len(m.Files))); err != nil {
		return err
	}
	for i, e := range m.Files {
		if err := writeFileEntry(w, e); err != nil {
			return fmt.Errorf("writing file entry %d: %w", i, err)
		}
	}
	return nil
}

func writeFileEntry(w io.Writer, e FileEntry) error {
	if err := wire.WriteString(w, e.Path); err != nil {
		return err
	}
	if err := wire.WriteUint64(w, e.Size); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, e.Mode); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, e.UID); err != nil {
		return err
	}
	if err := wire.WriteUint32(w, e.GID); err != nil {
		return err
	}
	return wire.WriteUint64(w, e.Checksum)
}

// Reader exposes a parsed meowzip archive: metadata is fully available
// immediately; the payload is a strictly forward-only stream.
type Reader struct {
	Metadata

	f       *os.File
	payload *zstd.Decoder
	sig     []byte
	signed  *io.SectionReader
}

// Open parses the header and manifest of the archive at path and returns
// a Reader positioned at the start of the compressed payload. The caller
// must call Close when done.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}
	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func newReader(f *os.File) (*Reader, error) {
	br := bufio.NewReader(f)
	meta, err := readHeader(br)
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := wire.ReadMagic(br, magicPayload); err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	if stat.Size() < trailerLength {
		return nil, fmt.Errorf("archive truncated: file smaller than trailer")
	}

	var lenBuf [8]byte
	if _, err := f.ReadAt(lenBuf[:], stat.Size()-trailerLength); err != nil {
		return nil, fmt.Errorf("reading signature length trailer: %w", err)
	}
	sigLen := int64(beUint64(lenBuf[:]))

	sigStart := stat.Size() - trailerLength - sigLen
	if sigLen < 0 || sigStart < 0 {
		return nil, fmt.Errorf("archive truncated: invalid signature length %d", sigLen)
	}

	sig := make([]byte, sigLen)
	if sigLen > 0 {
		if _, err := f.ReadAt(sig, sigStart); err != nil {
			return nil, fmt.Errorf("reading signature: %w", err)
		}
	}

	payloadStart := headerAndMagicOffset(f, br)
	payloadSize := sigStart - payloadStart
	if payloadSize < 0 {
		return nil, fmt.Errorf("archive truncated: negative payload size")
	}

	zr, err := zstd.NewReader(io.NewSectionReader(f, payloadStart, payloadSize))
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}

	return &Reader{
		Metadata: meta,
		f:        f,
		payload:  zr,
		sig:      sig,
		signed:   io.NewSectionReader(f, 0, sigStart),
	}, nil
}

// headerAndMagicOffset computes the file offset immediately following the
// "ZSTD" magic, i.e. where the compressed payload begins. It accounts for
// bytes already buffered (but not yet consumed past the magic) by the
// bufio.Reader used while parsing the header.
func headerAndMagicOffset(f *os.File, br *bufio.Reader) int64 {
	cur, _ := f.Seek(0, io.SeekCurrent)
	return cur - int64(br.Buffered())
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func readHeader(r io.Reader) (Metadata, error) {
	var m Metadata
	if err := wire.ReadMagic(r, magicHeader); err != nil {
		return m, err
	}
	var err error
	if m.Name, err = wire.ReadString(r); err != nil {
		return m, fmt.Errorf("reading name: %w", err)
	}
	if m.Version, err = wire.ReadString(r); err != nil {
		return m, fmt.Errorf("reading version: %w", err)
	}
	if m.Release, err = wire.ReadUint64(r); err != nil {
		return m, fmt.Errorf("reading release: %w", err)
	}
	if m.Packager, err = wire.ReadString(r); err != nil {
		return m, fmt.Errorf("reading packager: %w", err)
	}
	if m.License, err = wire.ReadString(r); err != nil {
		return m, fmt.Errorf("reading license: %w", err)
	}
	depends, err := wire.ReadString(r)
	if err != nil {
		return m, fmt.Errorf("reading depends: %w", err)
	}
	m.Depends = ParseDepends(depends)

	hooks := make([][]byte, 4)
	for i := range hooks {
		if hooks[i], err = wire.ReadBytes(r); err != nil {
			return m, fmt.Errorf("reading hook %d: %w", i, err)
		}
	}
	m.PreInstall, m.PostInstall, m.PreRemove, m.PostRemove = hooks[0], hooks[1], hooks[2], hooks[3]

	count, err := wire.ReadUint64(r)
	if err != nil {
		return m, fmt.Errorf("reading file count: %w", err)
	}
	m.Files = make([]FileEntry, count)
	for i := range m.Files {
		e, err := readFileEntry(r)
		if err != nil {
			return m, fmt.Errorf("reading manifest entry %d: %w", i, err)
		}
		m.Files[i] = e
	}
	return m, nil
}

func readFileEntry(r io.Reader) (FileEntry, error) {
	var e FileEntry
	var err error
	if e.Path, err = wire.ReadString(r); err != nil {
		return e, err
	}
	if e.Size, err = wire.ReadUint64(r); err != nil {
		return e, err
	}
	if e.Mode, err = wire.ReadUint32(r); err != nil {
		return e, err
	}
	if e.UID, err = wire.ReadUint32(r); err != nil {
		return e, err
	}
	if e.GID, err = wire.ReadUint32(r); err != nil {
		return e, err
	}
	if e.Checksum, err = wire.ReadUint64(r); err != nil {
		return e, err
	}
	return e, nil
}

// Payload returns the forward-only decompressing reader over the
// concatenated file bodies. Every non-directory manifest entry must be
// consumed (or explicitly discarded) for exactly its declared Size bytes,
// in manifest order, to keep the stream aligned — see package apply.
func (r *Reader) Payload() io.Reader { return r.payload }

// Signature returns the raw detached signature bytes appended after the
// payload.
func (r *Reader) Signature() []byte { return r.sig }

// SignedRange returns a fresh reader over the byte range the signature
// was computed against: file start through the end of the compressed
// payload.
func (r *Reader) SignedRange() io.Reader {
	return io.NewSectionReader(r.f, 0, r.signed.Size())
}

// Close releases the decompressor and the underlying file.
func (r *Reader) Close() error {
	r.payload.Close()
	return r.f.Close()
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
