package resolve

import "fmt"

// Manifest is the subset of package metadata the resolver needs: a name,
// its dependencies, and enough identity to detect whether an installed
// copy is up to date.
type Manifest struct {
	Name    string
	Version string
	Release uint64
	Depends []string
}

// Index looks up a manifest by name, as the sync command's fetched
// package index does.
type Index map[string]Manifest

// Resolve returns requested and every (transitive) dependency in
// install-safe order, post-order DFS over Depends, duplicates removed.
// A name missing from index is an error. Cycles do not loop forever: the
// duplicate-skip guard halts recursion, but the relative order of cycle
// members is unspecified.
func Resolve(index Index, requested []string) ([]string, error) {
	var (
		order []string
		seen  = map[string]bool{}
	)
	for _, name := range requested {
		if err := visit(index, name, seen, &order); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func visit(index Index, name string, seen map[string]bool, order *[]string) error {
	if seen[name] {
		return nil
	}
	seen[name] = true // marked before recursing: breaks cycles

	m, ok := index[name]
	if !ok {
		return fmt.Errorf("resolving %q: not found in index", name)
	}
	for _, dep := range m.Depends {
		if err := visit(index, dep, seen, order); err != nil {
			return fmt.Errorf("resolving dependency %q of %q: %w", dep, name, err)
		}
	}
	*order = append(*order, name)
	return nil
}

// InstalledLookup answers whether a package is installed and, if so,
// what identity it was installed at.
type InstalledLookup interface {
	Installed(name string) (version string, release uint64, found bool)
}

// Delta is the result of comparing a resolved install set against what
// is currently installed.
type Delta struct {
	// ToInstall holds names absent locally, in Resolve's order.
	ToInstall []string
	// ToUpgrade holds names present locally under a different
	// (version, release), in Resolve's order.
	ToUpgrade []string
	// Orphans holds installed names outside the resolved set entirely.
	Orphans []string
}

// ComputeDelta compares resolved (the full dependency closure of a sync
// or install request) against installed, per §4.G's upgrade/orphan rules.
func ComputeDelta(index Index, resolved []string, installed InstalledLookup, installedNames []string) Delta {
	var d Delta
	resolvedSet := map[string]bool{}

	for _, name := range resolved {
		resolvedSet[name] = true
		m := index[name]
		version, release, found := installed.Installed(name)
		switch {
		case !found:
			d.ToInstall = append(d.ToInstall, name)
		case version != m.Version || release != m.Release:
			d.ToUpgrade = append(d.ToUpgrade, name)
		}
	}

	for _, name := range installedNames {
		if !resolvedSet[name] {
			d.Orphans = append(d.Orphans, name)
		}
	}
	return d
}
