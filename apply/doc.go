// Package apply implements the filesystem applier: the two-pass manifest
// walk that materializes an archive's files under a target root, and the
// three-way merge that decides whether an upgraded file is overwritten,
// discarded, or diverted to a .pacnew sidecar.
package apply
