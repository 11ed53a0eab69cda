package apply

import "testing"

func TestDecideMergeTable(t *testing.T) {
	cases := []struct {
		name           string
		org, cur, incm uint64
		want           mergeAction
	}{
		{"X-X-X", 1, 1, 1, actionDiscard},
		{"X-X-Y", 1, 1, 2, actionOverwrite},
		{"X-Y-X", 1, 2, 1, actionDiscard},
		{"X-Y-Y", 1, 2, 2, actionDiscard},
		{"X-Y-Z", 1, 2, 3, actionSidecar},
		{"fresh install", 0, 0, 5, actionOverwrite},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := decideMerge(c.org, c.cur, c.incm)
			if got != c.want {
				t.Errorf("decideMerge(%d,%d,%d) = %v, want %v", c.org, c.cur, c.incm, got, c.want)
			}
		})
	}
}
