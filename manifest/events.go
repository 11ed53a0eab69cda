package manifest

import (
	"encoding/json"
	"fmt"
)

// Listener is a callback function that receives events during the build process.
type Listener func(fmt.Stringer)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventArchiveBuildSuccess is emitted when a package definition has been
// rendered and turned into archive metadata, ahead of being written.
type EventArchiveBuildSuccess struct {
	FilePath string `json:"file_path,omitempty"`
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Release  uint64 `json:"release,omitempty"`
}

func (e EventArchiveBuildSuccess) String() string { return jsonString(e) }

// EventArchiveWrite is emitted when an archive has been written to the
// output directory.
type EventArchiveWrite struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Release uint64 `json:"release,omitempty"`
}

func (e EventArchiveWrite) String() string { return jsonString(e) }

// EventBuildSaveSuccess is emitted when every package in a Build has been
// compiled and written.
type EventBuildSaveSuccess struct {
	Path string `json:"path,omitempty"`
}

func (e EventBuildSaveSuccess) String() string { return jsonString(e) }
