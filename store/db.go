package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nutsdb/nutsdb"
)

const (
	bucketPackages = "PKGS"
	bucketFiles    = "FILES"

	// DefaultPath is where the database lives relative to an install root,
	// per the external wire layout.
	DefaultPath = "var/lib/meow.db"
)

// DB is the installed-package database: a thin, typed layer over an
// embedded nutsdb store, generalized from the teacher's approach of
// keeping persistence concerns in one small file separate from domain
// logic (deb/repository.go's WriteToDir, here backed by a real KV engine
// instead of a directory tree).
type DB struct {
	inner *nutsdb.DB
}

// Open opens (creating if absent) the database rooted at dir, a path such
// as "<root>/var/lib/meow.db".
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dir), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	opts := nutsdb.DefaultOptions
	opts.Dir = dir
	inner, err := nutsdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", dir, err)
	}
	db := &DB{inner: inner}
	if err := db.ensureBuckets(); err != nil {
		inner.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) ensureBuckets() error {
	return db.inner.Update(func(tx *nutsdb.Tx) error {
		for _, b := range []string{bucketPackages, bucketFiles} {
			if err := tx.NewBucket(nutsdb.DataStructureBTree, b); err != nil && err != nutsdb.ErrBucketAlreadyExist {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
}

// Close releases the underlying database files.
func (db *DB) Close() error {
	return db.inner.Close()
}

// GetPackage returns the record for name, or (PackageRecord{}, false, nil)
// if no such package is installed.
func (db *DB) GetPackage(name string) (PackageRecord, bool, error) {
	var (
		rec   PackageRecord
		found bool
	)
	err := db.inner.View(func(tx *nutsdb.Tx) error {
		v, err := tx.Get(bucketPackages, []byte(name))
		if err == nutsdb.ErrKeyNotFound || err == nutsdb.ErrBucketNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		rec, err = decodePackageRecord(v)
		if err != nil {
			return fmt.Errorf("decoding package %q: %w", name, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return PackageRecord{}, false, fmt.Errorf("reading package %q: %w", name, err)
	}
	return rec, found, nil
}

// ListPackages returns every installed package record, in no particular
// order.
func (db *DB) ListPackages() ([]PackageRecord, error) {
	var out []PackageRecord
	err := db.inner.View(func(tx *nutsdb.Tx) error {
		keys, values, err := tx.GetAll(bucketPackages)
		if err == nutsdb.ErrBucketEmpty || err == nutsdb.ErrBucketNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		for i := range keys {
			rec, err := decodePackageRecord(values[i])
			if err != nil {
				return fmt.Errorf("decoding package %q: %w", keys[i], err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing packages: %w", err)
	}
	return out, nil
}

// GetFile returns the record owning path, or (FileRecord{}, false, nil) if
// path is not tracked.
func (db *DB) GetFile(path string) (FileRecord, bool, error) {
	var (
		rec   FileRecord
		found bool
	)
	err := db.inner.View(func(tx *nutsdb.Tx) error {
		v, err := tx.Get(bucketFiles, []byte(path))
		if err == nutsdb.ErrKeyNotFound || err == nutsdb.ErrBucketNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		rec, err = decodeFileRecord(v)
		if err != nil {
			return fmt.Errorf("decoding file %q: %w", path, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return FileRecord{}, false, fmt.Errorf("reading file %q: %w", path, err)
	}
	return rec, found, nil
}

// PutPackage writes pkg's record and every one of its file records,
// deleting staleFiles first (the upgraded-away paths of a prior install),
// all inside a single transaction: a crash between the two tables'
// writes, or between the delete and the inserts, is never observable.
func (db *DB) PutPackage(pkg PackageRecord, files []FileRecord, staleFiles []string) error {
	pkgBytes, err := encodePackageRecord(pkg)
	if err != nil {
		return fmt.Errorf("encoding package %q: %w", pkg.Name, err)
	}
	return db.inner.Update(func(tx *nutsdb.Tx) error {
		for _, p := range staleFiles {
			if err := tx.Delete(bucketFiles, []byte(p)); err != nil && err != nutsdb.ErrKeyNotFound {
				return fmt.Errorf("deleting stale file %q: %w", p, err)
			}
		}
		if err := tx.Put(bucketPackages, []byte(pkg.Name), pkgBytes, 0); err != nil {
			return fmt.Errorf("writing package %q: %w", pkg.Name, err)
		}
		for _, f := range files {
			b, err := encodeFileRecord(f)
			if err != nil {
				return fmt.Errorf("encoding file %q: %w", f.Path, err)
			}
			if err := tx.Put(bucketFiles, []byte(f.Path), b, 0); err != nil {
				return fmt.Errorf("writing file %q: %w", f.Path, err)
			}
		}
		return nil
	})
}

// RemovePackage deletes name's record along with the file record at every
// path listed in its Paths, in one transaction.
func (db *DB) RemovePackage(name string) error {
	return db.inner.Update(func(tx *nutsdb.Tx) error {
		v, err := tx.Get(bucketPackages, []byte(name))
		if err == nutsdb.ErrKeyNotFound {
			return fmt.Errorf("package %q is not installed", name)
		}
		if err != nil {
			return err
		}
		rec, err := decodePackageRecord(v)
		if err != nil {
			return fmt.Errorf("decoding package %q: %w", name, err)
		}
		if err := tx.Delete(bucketPackages, []byte(name)); err != nil {
			return fmt.Errorf("deleting package %q: %w", name, err)
		}
		for _, p := range rec.Paths {
			if err := tx.Delete(bucketFiles, []byte(p)); err != nil && err != nutsdb.ErrKeyNotFound {
				return fmt.Errorf("deleting file %q: %w", p, err)
			}
		}
		return nil
	})
}
