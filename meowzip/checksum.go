package meowzip

import (
	"io"

	"github.com/cespare/xxhash/v2"
)

// Checksum computes the 64-bit non-cryptographic content hash stored in
// FileEntry.Checksum for regular files.
func Checksum(r io.Reader) (uint64, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// ChecksumBytes is Checksum for an in-memory buffer, used when a regular
// file's body is already held whole in memory.
func ChecksumBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}
