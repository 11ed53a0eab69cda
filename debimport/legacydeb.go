package debimport

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/blakesmith/ar"
)

// legacyPackage holds the subset of a .deb archive's content that maps
// onto a meowzip archive: identity, bare dependency names, lifecycle
// scripts, and the installed file tree. It is not a general Debian
// package model — fields with no meowzip equivalent (Architecture,
// Section, Priority, conffiles, ...) are never parsed.
type legacyPackage struct {
	Name    string
	Version string
	Depends []string

	PreInstall  string
	PostInstall string
	PreRemove   string
	PostRemove  string

	Files []legacyFile
}

// legacyFile is one regular file entry from a .deb's data archive.
type legacyFile struct {
	Path string
	Mode int64
	Body string
}

// parseLegacyDeb reads a .deb — an ar container of debian-binary,
// control.tar(.gz), and data.tar(.gz) — and extracts the fields Convert
// needs to build meowzip metadata.
func parseLegacyDeb(r io.Reader) (legacyPackage, error) {
	var pkg legacyPackage

	arR := ar.NewReader(r)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return legacyPackage{}, fmt.Errorf("reading ar header: %w", err)
		}

		switch {
		case strings.HasPrefix(header.Name, "control.tar"):
			if err := readControlMember(arR, header.Name, &pkg); err != nil {
				return legacyPackage{}, err
			}
		case strings.HasPrefix(header.Name, "data.tar"):
			if err := readDataMember(arR, header.Name, &pkg); err != nil {
				return legacyPackage{}, err
			}
		}
	}
	return pkg, nil
}

func tarReaderFor(r io.Reader, memberName string) (*tar.Reader, error) {
	if strings.HasSuffix(memberName, ".gz") {
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", memberName, err)
		}
		return tar.NewReader(gzr), nil
	}
	return tar.NewReader(r), nil
}

func readControlMember(r io.Reader, memberName string, pkg *legacyPackage) error {
	tr, err := tarReaderFor(r, memberName)
	if err != nil {
		return err
	}
	for {
		th, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading control tar header: %w", err)
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return fmt.Errorf("reading %s: %w", th.Name, err)
		}
		content := buf.String()

		switch strings.TrimPrefix(th.Name, "./") {
		case "control":
			name, version, depends := parseControlFields(content)
			pkg.Name = name
			pkg.Version = version
			pkg.Depends = splitDepends(depends)
		case "preinst":
			pkg.PreInstall = content
		case "postinst":
			pkg.PostInstall = content
		case "prerm":
			pkg.PreRemove = content
		case "postrm":
			pkg.PostRemove = content
		}
	}
	return nil
}

func readDataMember(r io.Reader, memberName string, pkg *legacyPackage) error {
	tr, err := tarReaderFor(r, memberName)
	if err != nil {
		return err
	}
	for {
		th, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading data tar header: %w", err)
		}
		if th.Typeflag != tar.TypeReg {
			continue
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return fmt.Errorf("reading file %s: %w", th.Name, err)
		}
		destPath := "/" + strings.TrimPrefix(th.Name, "./")
		destPath = strings.ReplaceAll(destPath, "//", "/")
		pkg.Files = append(pkg.Files, legacyFile{Path: destPath, Mode: th.Mode, Body: buf.String()})
	}
	return nil
}

// parseControlFields extracts Package, Version, and Depends from a
// Debian control file. Continuation lines (indented, used by Description)
// are skipped since nothing here consumes a multi-line field.
func parseControlFields(content string) (name, version, depends string) {
	for _, line := range strings.Split(content, "\n") {
		if line == "" || strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		switch strings.TrimSpace(parts[0]) {
		case "Package":
			name = strings.TrimSpace(parts[1])
		case "Version":
			version = strings.TrimSpace(parts[1])
		case "Depends":
			depends = strings.TrimSpace(parts[1])
		}
	}
	return
}

func splitDepends(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
