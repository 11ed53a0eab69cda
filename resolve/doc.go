// Package resolve implements the dependency resolver: turning a set of
// requested package names into an install-safe order (dependencies
// before dependents), and computing the upgrade/orphan delta against a
// set of installed packages.
package resolve
