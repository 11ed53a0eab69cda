package pkgmgr

import (
	"encoding/json"
	"fmt"
)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventInstalled is emitted once a package's install transaction commits.
type EventInstalled struct {
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
	Release    uint64 `json:"release,omitempty"`
	Upgrade    bool   `json:"upgrade,omitempty"`
	OldVersion string `json:"old_version,omitempty"`
}

func (e EventInstalled) String() string { return jsonString(e) }

// EventRemoved is emitted once a package's remove transaction commits.
type EventRemoved struct {
	Name string `json:"name,omitempty"`
}

func (e EventRemoved) String() string { return jsonString(e) }

// EventOrphanRemoved is emitted when sync uninstalls a package outside
// the resolved target set.
type EventOrphanRemoved struct {
	Name string `json:"name,omitempty"`
}

func (e EventOrphanRemoved) String() string { return jsonString(e) }

func (m *Manager) notify(ev fmt.Stringer) {
	if m.cfg.Listener != nil {
		m.cfg.Listener(ev)
	}
	if m.cfg.Logger != nil {
		m.cfg.Logger.Debug(ev.String())
	}
}
