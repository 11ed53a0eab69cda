// Package store implements the installed-package database: two logical
// tables, PACKAGES keyed by package name and FILES keyed by absolute path,
// persisted under <root>/var/lib/meow.db via an embedded nutsdb store.
//
// Reads are snapshot-isolated; writes are committed as a single nutsdb
// transaction so a crash mid-install never leaves the database half
// updated for one package's record.
package store
