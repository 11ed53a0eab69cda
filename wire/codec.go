// Package wire provides the fixed-endian binary primitives used by the
// meowzip container and by the installed-package database's record
// encoding. Every multi-byte integer is big-endian; every string is
// length-prefixed by a 64-bit count followed by its UTF-8 bytes.
//
// A well-formed read either returns a fully populated value or fails with
// a short-read or invalid-UTF-8 error. Partial results never escape: on
// any error the caller's buffer is left untouched or discarded.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// WriteUint64 writes v as 8 big-endian bytes.
func WriteUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	if err != nil {
		return fmt.Errorf("writing uint64: %w", err)
	}
	return nil
}

// ReadUint64 reads 8 big-endian bytes.
func ReadUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("reading uint64: %w", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// WriteUint32 writes v as 4 big-endian bytes.
func WriteUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	if err != nil {
		return fmt.Errorf("writing uint32: %w", err)
	}
	return nil
}

// ReadUint32 reads 4 big-endian bytes.
func ReadUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("reading uint32: %w", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// WriteBytes writes a u64 length prefix followed by b.
func WriteBytes(w io.Writer, b []byte) error {
	if err := WriteUint64(w, uint64(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("writing bytes: %w", err)
	}
	return nil
}

// ReadBytes reads a u64 length prefix followed by that many bytes.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadUint64(r)
	if err != nil {
		return nil, fmt.Errorf("reading bytes length: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading %d bytes: %w", n, err)
	}
	return buf, nil
}

// WriteString writes a u64 length prefix followed by the UTF-8 bytes of s.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads a length-prefixed string and validates it as UTF-8.
func ReadString(r io.Reader) (string, error) {
	b, err := ReadBytes(r)
	if err != nil {
		return "", fmt.Errorf("reading string: %w", err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("reading string: invalid UTF-8")
	}
	return string(b), nil
}

// WriteMagic writes a short fixed token verbatim (no length prefix), used
// for the "MEOW" and "ZSTD" framing markers.
func WriteMagic(w io.Writer, magic string) error {
	if _, err := w.Write([]byte(magic)); err != nil {
		return fmt.Errorf("writing magic %q: %w", magic, err)
	}
	return nil
}

// ReadMagic reads len(want) bytes and fails unless they equal want exactly.
func ReadMagic(r io.Reader, want string) error {
	buf := make([]byte, len(want))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("reading magic %q: %w", want, err)
	}
	if string(buf) != want {
		return fmt.Errorf("bad magic: want %q, got %q", want, buf)
	}
	return nil
}
