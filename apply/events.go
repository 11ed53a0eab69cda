package apply

import (
	"encoding/json"
	"fmt"
)

// Listener receives progress and warning events as the applier walks a
// manifest, mirroring the teacher's manifest.Listener callback shape.
type Listener func(fmt.Stringer)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventInstalled is emitted once a manifest entry has been materialized
// on disk.
type EventInstalled struct {
	Path string `json:"path,omitempty"`
	Kind string `json:"kind,omitempty"`
}

func (e EventInstalled) String() string { return jsonString(e) }

// EventDiscarded is emitted when the three-way merge decides to keep the
// file that is already on disk.
type EventDiscarded struct {
	Path string `json:"path,omitempty"`
}

func (e EventDiscarded) String() string { return jsonString(e) }

// EventSidecar is emitted when a locally-modified file diverges from both
// its original and incoming content, and the incoming content is
// diverted to a sidecar path instead of overwriting the local edit.
type EventSidecar struct {
	Dest    string `json:"dest,omitempty"`
	Sidecar string `json:"sidecar,omitempty"`
}

func (e EventSidecar) String() string { return jsonString(e) }

func notify(l Listener, ev fmt.Stringer) {
	if l != nil {
		l(ev)
	}
}
