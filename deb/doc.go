// Package deb provides BumpVersion, a Debian-style version-iteration
// helper used by meow-zip create's --bump-from flag so packagers
// re-packaging the same upstream release don't have to compute the next
// iteration by hand. Reading and converting .deb archives themselves
// lives in debimport, which parses the ar/tar.gz container directly.
package deb
