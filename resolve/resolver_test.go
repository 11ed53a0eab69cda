package resolve

import "testing"

func idx(entries ...Manifest) Index {
	i := Index{}
	for _, e := range entries {
		i[e.Name] = e
	}
	return i
}

func indexOf(list []string, name string) int {
	for i, n := range list {
		if n == name {
			return i
		}
	}
	return -1
}

func TestResolveOrdersDependenciesFirst(t *testing.T) {
	index := idx(
		Manifest{Name: "app", Depends: []string{"libc", "libssl"}},
		Manifest{Name: "libssl", Depends: []string{"libc"}},
		Manifest{Name: "libc"},
	)
	order, err := Resolve(index, []string{"app"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("got %v, want 3 names", order)
	}
	if indexOf(order, "libc") > indexOf(order, "libssl") {
		t.Errorf("libc must precede libssl: %v", order)
	}
	if indexOf(order, "libssl") > indexOf(order, "app") {
		t.Errorf("libssl must precede app: %v", order)
	}
}

func TestResolveDeduplicates(t *testing.T) {
	index := idx(
		Manifest{Name: "app", Depends: []string{"libc", "libssl"}},
		Manifest{Name: "libssl", Depends: []string{"libc"}},
		Manifest{Name: "libc"},
	)
	order, err := Resolve(index, []string{"app", "libc"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	count := 0
	for _, n := range order {
		if n == "libc" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("libc appears %d times, want 1", count)
	}
}

func TestResolveMissingDependency(t *testing.T) {
	index := idx(Manifest{Name: "app", Depends: []string{"ghost"}})
	if _, err := Resolve(index, []string{"app"}); err == nil {
		t.Error("expected error for missing dependency")
	}
}

func TestResolveToleratesCycle(t *testing.T) {
	index := idx(
		Manifest{Name: "a", Depends: []string{"b"}},
		Manifest{Name: "b", Depends: []string{"a"}},
	)
	order, err := Resolve(index, []string{"a"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(order) != 2 {
		t.Fatalf("got %v, want 2 names", order)
	}
}

type installedPkg struct {
	version string
	release uint64
}

type fakeInstalled map[string]installedPkg

func (f fakeInstalled) Installed(name string) (string, uint64, bool) {
	v, ok := f[name]
	if !ok {
		return "", 0, false
	}
	return v.version, v.release, true
}

func TestComputeDelta(t *testing.T) {
	index := idx(
		Manifest{Name: "app", Version: "2.0", Release: 1},
		Manifest{Name: "libc", Version: "1.0", Release: 1},
	)
	resolved := []string{"libc", "app"}
	installed := fakeInstalled{
		"app":   {version: "1.0", release: 1},
		"stale": {version: "9.0", release: 1},
	}
	installedNames := []string{"app", "stale"}

	d := ComputeDelta(index, resolved, installed, installedNames)

	if indexOf(d.ToInstall, "libc") == -1 {
		t.Errorf("libc should be in ToInstall: %v", d.ToInstall)
	}
	if indexOf(d.ToUpgrade, "app") == -1 {
		t.Errorf("app should be in ToUpgrade: %v", d.ToUpgrade)
	}
	if indexOf(d.Orphans, "stale") == -1 {
		t.Errorf("stale should be an orphan: %v", d.Orphans)
	}
}
