// Package pkgmgr orchestrates the installer's three commands (install,
// remove, sync) atop package meowzip for archive access, package store
// for the installed-package database, package apply for filesystem
// materialization, package resolve for dependency ordering, package hook
// for lifecycle scripts, and package fetch for remote retrieval.
package pkgmgr
