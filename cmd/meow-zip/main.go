// Command meow-zip creates, inspects, and verifies meowzip (.mz) archives.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/meowpkg/meow/deb"
	"github.com/meowpkg/meow/meowzip"
)

// arrayFlags collects a repeated flag into a slice, e.g. --depends a --depends b.
type arrayFlags []string

func (i *arrayFlags) String() string { return strings.Join(*i, ", ") }
func (i *arrayFlags) Set(value string) error {
	*i = append(*i, value)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func printUsage() {
	fmt.Println("Usage: meow-zip <command> [flags]")
	fmt.Println("\nCommands:")
	fmt.Println("  create   Build a .mz archive from a directory tree")
	fmt.Println("  extract  Unpack a .mz archive's payload to a directory")
	fmt.Println("  list     Print an archive's manifest")
	fmt.Println("  info     Print an archive's metadata")
	fmt.Println("  verify   Check an archive's detached signature")
}

// runCreate builds an archive from every regular file found under --from,
// each entry's destination path mirroring its path relative to --from.
func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "package name (required)")
	version := fs.String("version", "", "package version (required)")
	bumpFrom := fs.String("bump-from", "", "derive --version by bumping the iteration of this prior version, for re-packaging the same upstream release")
	packager := fs.String("packager", "", "packager identity (required)")
	license := fs.String("license", "", "license identifier (required)")
	release := fs.Uint64("release", 1, "release number")
	from := fs.String("from", ".", "directory tree to package, files destined for /")
	out := fs.String("out", "", "output .mz path (required)")
	key := fs.String("key", "", "path to an armored PGP private key to sign with")
	pubkeyOut := fs.String("pubkey-out", "", "write the public half of --key to this path, for distribution alongside the archive")
	var depends arrayFlags
	fs.Var(&depends, "depends", "a required package name (repeatable)")
	fs.Parse(args)

	effectiveVersion := *version
	if *bumpFrom != "" {
		effectiveVersion = deb.BumpVersion(*bumpFrom)
	}

	if *name == "" || effectiveVersion == "" || *packager == "" || *license == "" || *out == "" {
		return fmt.Errorf("--name, --version (or --bump-from), --packager, --license and --out are required")
	}

	meta := meowzip.Metadata{
		Name:     *name,
		Version:  effectiveVersion,
		Release:  *release,
		Packager: *packager,
		License:  *license,
		Depends:  depends,
	}

	bodies := map[string]string{}
	err := filepath.Walk(*from, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == *from {
			return nil
		}
		rel, err := filepath.Rel(*from, path)
		if err != nil {
			return err
		}
		dst := "/" + filepath.ToSlash(rel)

		if info.IsDir() {
			meta.Files = append(meta.Files, meowzip.FileEntry{Path: dst, Mode: meowzip.ModeDir | uint32(info.Mode().Perm())})
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			meta.Files = append(meta.Files, meowzip.FileEntry{Path: dst, Size: uint64(len(target)), Mode: meowzip.ModeSymlink})
			bodies[dst] = target
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		meta.Files = append(meta.Files, meowzip.FileEntry{
			Path: dst,
			Size: uint64(len(content)),
			Mode: meowzip.ModeRegular | uint32(info.Mode().Perm()),
		})
		bodies[dst] = string(content)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", *from, err)
	}
	for i := range meta.Files {
		e := &meta.Files[i]
		if e.FileType() == meowzip.TypeRegular {
			e.Checksum = meowzip.ChecksumBytes([]byte(bodies[e.Path]))
		}
	}

	var signer meowzip.Signer
	if *key != "" {
		keyBytes, err := os.ReadFile(*key)
		if err != nil {
			return fmt.Errorf("reading signing key: %w", err)
		}
		signer, err = meowzip.NewSigner(keyBytes, nil)
		if err != nil {
			return fmt.Errorf("loading signing key: %w", err)
		}
		if *pubkeyOut != "" {
			pub, err := meowzip.ExtractPublicKey(keyBytes)
			if err != nil {
				return fmt.Errorf("deriving public key: %w", err)
			}
			if err := os.WriteFile(*pubkeyOut, pub, 0644); err != nil {
				return fmt.Errorf("writing public key: %w", err)
			}
		}
	} else if *pubkeyOut != "" {
		return fmt.Errorf("--pubkey-out requires --key")
	}

	src := meowzip.BodySource(func(e meowzip.FileEntry) (io.Reader, error) {
		return strings.NewReader(bodies[e.Path]), nil
	})
	if err := meowzip.Create(*out, meta, src, signer); err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	fmt.Printf("wrote %s\n", *out)
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	to := fs.String("to", ".", "directory to extract the payload into")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: meow-zip extract <archive.mz> [--to dir]")
	}

	r, err := meowzip.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	payload := bufio.NewReader(r.Payload())
	for _, e := range r.Files {
		dst := filepath.Join(*to, e.Path)
		switch e.FileType() {
		case meowzip.TypeDirectory:
			if err := os.MkdirAll(dst, 0755); err != nil {
				return err
			}
		case meowzip.TypeSymlink:
			target := make([]byte, e.Size)
			if _, err := io.ReadFull(payload, target); err != nil {
				return fmt.Errorf("reading symlink target %s: %w", e.Path, err)
			}
			os.Remove(dst)
			if err := os.Symlink(string(target), dst); err != nil {
				return err
			}
		default:
			if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
				return err
			}
			f, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(e.Perm()))
			if err != nil {
				return err
			}
			if _, err := io.CopyN(f, payload, int64(e.Size)); err != nil {
				f.Close()
				return fmt.Errorf("writing %s: %w", e.Path, err)
			}
			f.Close()
		}
	}
	fmt.Printf("extracted %d entries to %s\n", len(r.Files), *to)
	return nil
}

func runList(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: meow-zip list <archive.mz>")
	}
	r, err := meowzip.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()
	for _, e := range r.Files {
		fmt.Printf("%s %10d %s\n", e.FileType(), e.Size, e.Path)
	}
	return nil
}

func runInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: meow-zip info <archive.mz>")
	}
	r, err := meowzip.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	fmt.Printf("name:     %s\n", r.Name)
	fmt.Printf("version:  %s\n", r.Version)
	fmt.Printf("release:  %d\n", r.Release)
	fmt.Printf("packager: %s\n", r.Packager)
	fmt.Printf("license:  %s\n", r.License)
	if len(r.Depends) > 0 {
		fmt.Printf("depends:  %s\n", r.DependsString())
	}
	fmt.Printf("files:    %d\n", len(r.Files))
	if len(r.Signature()) > 0 {
		fmt.Println("signed:   yes")
	} else {
		fmt.Println("signed:   no")
	}
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var keys arrayFlags
	fs.Var(&keys, "key", "path to an armored PGP public key to trust (repeatable)")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: meow-zip verify <archive.mz> --key <pubkey> [--key <pubkey>...]")
	}
	if len(keys) == 0 {
		return fmt.Errorf("at least one --key is required")
	}

	var trusted [][]byte
	for _, k := range keys {
		b, err := os.ReadFile(k)
		if err != nil {
			return fmt.Errorf("reading %s: %w", k, err)
		}
		trusted = append(trusted, b)
	}
	verifier, err := meowzip.NewVerifier(trusted)
	if err != nil {
		return fmt.Errorf("loading trust set: %w", err)
	}

	r, err := meowzip.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer r.Close()

	sig := r.Signature()
	if len(sig) == 0 {
		return fmt.Errorf("archive carries no signature")
	}
	if err := verifier.Verify(r.SignedRange(), sig); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	fmt.Println("signature OK")
	return nil
}
