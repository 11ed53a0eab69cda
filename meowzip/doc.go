// Package meowzip implements the meowzip container format: a
// self-describing binary envelope carrying package metadata, a file
// manifest, a zstd-compressed payload stream, and an appended detached
// signature.
//
// # Design philosophy
//
// Metadata and the file manifest are always fully materialized before any
// payload byte is read or written — a caller can inspect a package's
// contents without touching its (potentially large) file bodies. The
// payload itself is a single forward-only stream: every manifest entry
// contributes exactly its declared size, in manifest order, whether the
// caller consumes it or discards it. This mirrors the teacher library's
// treatment of .deb archives as streamed, in-memory structures rather
// than files requiring external tools to inspect.
//
// # Wire format
//
//	"MEOW"
//	metadata fields (name, version, release, packager, license, depends, hooks)
//	file manifest (one FileEntry per path)
//	"ZSTD"
//	<zstd-compressed payload: concatenated file bodies, manifest order>
//	<detached signature>
//	u64 signature length (trailer)
//
// All integers are big-endian; all strings are u64-length-prefixed UTF-8.
package meowzip
