package apply

import (
	"fmt"

	"github.com/meowpkg/meow/meowzip"
)

// ConflictError reports a pre-apply conflict that aborts the whole
// transaction before any writes happen.
type ConflictError struct {
	Path   string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict at %s: %s", e.Path, e.Reason)
}

// checkConflict runs the pre-apply conflict check for one entry, given
// the package name the entry is being installed as part of.
func checkConflict(ctx PathContext, packageName string) error {
	ft := ctx.Entry.FileType()

	if ctx.HasRecord && ctx.OldRecord.Owner != packageName && ft != meowzip.TypeDirectory {
		return &ConflictError{Path: ctx.Entry.Path, Reason: "already owned"}
	}

	oldFt, exists := ctx.oldFiletype()
	if !exists {
		return nil
	}
	if ctx.HasRecord && oldFt == ft {
		return nil // upgradable
	}
	if oldFt != ft {
		return &ConflictError{Path: ctx.Entry.Path, Reason: fmt.Sprintf("is not a %s", ft)}
	}
	return nil
}

// mergeAction is the three-way merge's verdict for one regular file.
type mergeAction int

const (
	actionDiscard mergeAction = iota
	actionOverwrite
	actionSidecar
)

// decideMerge implements the three-way merge table of §4.F: org is what
// was last installed, cur is the current on-disk content's checksum (0 if
// absent), new is the incoming entry's checksum.
func decideMerge(org, cur, incoming uint64) mergeAction {
	switch {
	case org == cur && cur == incoming:
		return actionDiscard // X-X-X
	case org == cur && cur != incoming:
		return actionOverwrite // X-X-Y
	case org == incoming && cur != incoming:
		return actionDiscard // X-Y-X: keep current
	case org != cur && cur == incoming:
		return actionDiscard // X-Y-Y
	default:
		return actionSidecar // X-Y-Z
	}
}
