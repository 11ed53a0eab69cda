package manifest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/meowpkg/meow/debimport"
	"github.com/meowpkg/meow/meowzip"
)

// Package is the declarative definition of one meowzip archive: metadata,
// injected files, and hook scripts, loaded from a configuration file and
// rendered through the template engine before being turned into an
// archive.
type Package struct {
	// Input is the path to an optional source .deb package to convert and
	// patch, instead of building the archive from scratch.
	Input string `json:"input" yaml:"input"`
	// Defines is a map of local variables available to templates in this package.
	Defines map[string]string `json:"defines" yaml:"defines"`
	// Meta sets the archive's metadata fields: name, version, release,
	// packager, license.
	Meta map[string]string `json:"meta" yaml:"meta"`
	// Depends lists the package names this archive requires at install time.
	Depends []string `json:"depends" yaml:"depends"`
	// Injects is a list of files to add to the archive payload.
	Injects []File `json:"injects" yaml:"injects"`
	// Scripts is a list of hook scripts to add to the archive.
	Scripts []File `json:"scripts" yaml:"scripts"`

	filePath string
	engine   *varResolver
}

// File represents a file resource to be injected into the archive.
type File struct {
	// Src is the path to the source file (relative to the package definition file).
	Src string `json:"src" yaml:"src"`
	// Dst is the absolute path where the file will be installed on the target system.
	Dst string `json:"dst" yaml:"dst"`
	// Raw indicates whether the file should be treated as raw content (true) or processed as a template (false).
	Raw bool `json:"raw" yaml:"raw"`
	// Mode is the file permissions in octal string format (e.g., "0755").
	Mode string `json:"mode" yaml:"mode"`
}

func (p *Package) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(p.filePath), path)
}

func (p *Package) loadResource(path string, raw bool) (string, error) {
	var content []byte
	var err error

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		resp, err := http.Get(path)
		if err != nil {
			return "", fmt.Errorf("failed to fetch resource %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("failed to fetch resource %s: %s", path, resp.Status)
		}

		content, err = io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read resource body %s: %w", path, err)
		}
	} else {
		resolved := p.resolve(path)
		content, err = os.ReadFile(resolved)
		if err != nil {
			return "", fmt.Errorf("reading resource %s: %w", resolved, err)
		}
	}

	if raw {
		return string(content), nil
	}
	return p.engine.render(path, string(content))
}

// Apply renders the package definition into a meowzip.Metadata and a
// BodySource over its injected files.
func (p *Package) Apply() (meowzip.Metadata, meowzip.BodySource, error) {
	input, err := p.engine.render("input", p.Input)
	if err != nil {
		return meowzip.Metadata{}, nil, fmt.Errorf("rendering input: %w", err)
	}

	var meta meowzip.Metadata
	bodies := map[string]string{}

	if input != "" {
		content, err := p.loadResource(input, true)
		if err != nil {
			return meowzip.Metadata{}, nil, fmt.Errorf("reading input package %s: %w", input, err)
		}
		packager, err := p.engine.render("meta.packager", p.Meta["packager"])
		if err != nil {
			return meowzip.Metadata{}, nil, err
		}
		var src meowzip.BodySource
		meta, src, err = debimport.Convert(strings.NewReader(content), packager)
		if err != nil {
			return meowzip.Metadata{}, nil, fmt.Errorf("converting input package %s: %w", input, err)
		}
		for _, e := range meta.Files {
			if e.FileType() != meowzip.TypeRegular {
				continue
			}
			r, err := src(e)
			if err != nil {
				return meowzip.Metadata{}, nil, err
			}
			buf, err := io.ReadAll(r)
			if err != nil {
				return meowzip.Metadata{}, nil, err
			}
			bodies[e.Path] = string(buf)
		}
	}

	for k, v := range p.Meta {
		val, err := p.engine.render("meta."+k, v)
		if err != nil {
			return meowzip.Metadata{}, nil, fmt.Errorf("rendering meta %s: %w", k, err)
		}
		switch k {
		case "name":
			meta.Name = val
		case "version":
			meta.Version = val
		case "release":
			n, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return meowzip.Metadata{}, nil, fmt.Errorf("parsing release %q: %w", val, err)
			}
			meta.Release = n
		case "packager":
			meta.Packager = val
		case "license":
			meta.License = val
		}
	}
	if meta.Release == 0 {
		meta.Release = 1
	}

	for _, d := range p.Depends {
		dep, err := p.engine.render("depends", d)
		if err != nil {
			return meowzip.Metadata{}, nil, err
		}
		meta.Depends = append(meta.Depends, dep)
	}

	for i, f := range p.Injects {
		dst, err := p.engine.render(fmt.Sprintf("injects[%d].dst", i), f.Dst)
		if err != nil {
			return meowzip.Metadata{}, nil, err
		}
		src, err := p.engine.render(fmt.Sprintf("injects[%d].src", i), f.Src)
		if err != nil {
			return meowzip.Metadata{}, nil, err
		}

		mode := uint32(0644)
		if f.Mode != "" {
			modeStr, err := p.engine.render(fmt.Sprintf("injects[%d].mode", i), f.Mode)
			if err != nil {
				return meowzip.Metadata{}, nil, err
			}
			m, err := strconv.ParseUint(modeStr, 8, 32)
			if err != nil {
				return meowzip.Metadata{}, nil, fmt.Errorf("parsing mode %s: %w", modeStr, err)
			}
			mode = uint32(m)
		}

		content, err := p.loadResource(src, f.Raw)
		if err != nil {
			return meowzip.Metadata{}, nil, err
		}

		replaceFile(&meta, dst, meowzip.ModeRegular|mode, uint64(len(content)))
		bodies[dst] = content
	}
	ensureParentDirs(&meta)
	sortManifest(meta.Files)
	for i := range meta.Files {
		e := &meta.Files[i]
		if e.FileType() == meowzip.TypeRegular {
			e.Checksum = meowzip.ChecksumBytes([]byte(bodies[e.Path]))
		}
	}

	for i, f := range p.Scripts {
		dst, err := p.engine.render(fmt.Sprintf("scripts[%d].dst", i), f.Dst)
		if err != nil {
			return meowzip.Metadata{}, nil, err
		}
		src, err := p.engine.render(fmt.Sprintf("scripts[%d].src", i), f.Src)
		if err != nil {
			return meowzip.Metadata{}, nil, err
		}
		content, err := p.loadResource(src, f.Raw)
		if err != nil {
			return meowzip.Metadata{}, nil, err
		}

		switch dst {
		case "pre_install":
			meta.PreInstall = []byte(content)
		case "post_install":
			meta.PostInstall = []byte(content)
		case "pre_remove":
			meta.PreRemove = []byte(content)
		case "post_remove":
			meta.PostRemove = []byte(content)
		default:
			return meowzip.Metadata{}, nil, fmt.Errorf("unknown hook dst: %s", dst)
		}
	}

	finalBodies := bodies
	src := meowzip.BodySource(func(e meowzip.FileEntry) (io.Reader, error) {
		return bytes.NewReader([]byte(finalBodies[e.Path])), nil
	})
	return meta, src, nil
}

// replaceFile inserts or overwrites the manifest entry for dst.
func replaceFile(meta *meowzip.Metadata, dst string, mode uint32, size uint64) {
	for i, e := range meta.Files {
		if e.Path == dst {
			meta.Files[i].Mode = mode
			meta.Files[i].Size = size
			return
		}
	}
	meta.Files = append(meta.Files, meowzip.FileEntry{Path: dst, Mode: mode, Size: size})
}

// ensureParentDirs adds a directory entry for every ancestor of every
// entry already in meta.Files that isn't already present.
func ensureParentDirs(meta *meowzip.Metadata) {
	have := make(map[string]bool, len(meta.Files))
	for _, e := range meta.Files {
		have[e.Path] = true
	}
	var add []meowzip.FileEntry
	for _, e := range meta.Files {
		for dir := parentDir(e.Path); dir != "" && dir != "/"; dir = parentDir(dir) {
			if have[dir] {
				break
			}
			have[dir] = true
			add = append(add, meowzip.FileEntry{Path: dir, Mode: meowzip.ModeDir | 0755})
		}
	}
	meta.Files = append(meta.Files, add...)
}

func parentDir(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	i := strings.LastIndex(trimmed, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

func sortManifest(files []meowzip.FileEntry) {
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
}
