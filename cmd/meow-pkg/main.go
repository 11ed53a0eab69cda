// Command meow-pkg installs, removes, and reports on meowzip packages.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/meowpkg/meow/pkgmgr"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "install":
		err = runInstall(os.Args[2:])
	case "remove":
		err = runRemove(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func printUsage() {
	fmt.Println("Usage: meow-pkg <command> [flags]")
	fmt.Println("\nCommands:")
	fmt.Println("  install <package.mz>  Install or upgrade a package")
	fmt.Println("  remove <name>         Uninstall a package")
	fmt.Println("  list                  Print every installed package")
	fmt.Println("  info <name>           Print one package's metadata")
}

func runInstall(args []string) error {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	root := fs.String("root", "/", "target filesystem root")
	overwrite := fs.Bool("overwrite", false, "allow installing over an already-installed package")
	breakDeps := fs.Bool("breakdeps", false, "install despite missing dependencies")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: meow-pkg install <package.mz> [--overwrite] [--breakdeps] [--root path]")
	}

	m, err := pkgmgr.Open(pkgmgr.Config{Root: *root, Overwrite: *overwrite, BreakDeps: *breakDeps})
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Install(fs.Arg(0)); err != nil {
		return fmt.Errorf("installing %s: %w", fs.Arg(0), err)
	}
	fmt.Printf("installed %s\n", fs.Arg(0))
	return nil
}

func runRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	root := fs.String("root", "/", "target filesystem root")
	breakDeps := fs.Bool("breakdeps", false, "remove despite present dependents")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: meow-pkg remove <name> [--breakdeps] [--root path]")
	}

	m, err := pkgmgr.Open(pkgmgr.Config{Root: *root, BreakDeps: *breakDeps})
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Remove(fs.Arg(0)); err != nil {
		return fmt.Errorf("removing %s: %w", fs.Arg(0), err)
	}
	fmt.Printf("removed %s\n", fs.Arg(0))
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	root := fs.String("root", "/", "target filesystem root")
	fs.Parse(args)

	m, err := pkgmgr.Open(pkgmgr.Config{Root: *root})
	if err != nil {
		return err
	}
	defer m.Close()

	pkgs, err := m.ListInstalled()
	if err != nil {
		return fmt.Errorf("listing installed packages: %w", err)
	}
	for _, p := range pkgs {
		fmt.Printf("%s-%s-%d.mz\n", p.Name, p.Version, p.Release)
	}
	return nil
}

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	root := fs.String("root", "/", "target filesystem root")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: meow-pkg info <name> [--root path]")
	}

	m, err := pkgmgr.Open(pkgmgr.Config{Root: *root})
	if err != nil {
		return err
	}
	defer m.Close()

	pkg, found, err := m.Installed(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading %s: %w", fs.Arg(0), err)
	}
	if !found {
		return fmt.Errorf("%s is not installed", fs.Arg(0))
	}

	fmt.Printf("name:     %s\n", pkg.Name)
	fmt.Printf("version:  %s\n", pkg.Version)
	fmt.Printf("release:  %d\n", pkg.Release)
	fmt.Printf("packager: %s\n", pkg.Packager)
	fmt.Printf("license:  %s\n", pkg.License)
	if len(pkg.Depends) > 0 {
		fmt.Printf("depends:  %v\n", pkg.Depends)
	}

	var totalSize uint64
	for _, p := range pkg.Paths {
		rec, found, err := m.FileInfo(p)
		if err != nil {
			return fmt.Errorf("reading file %s: %w", p, err)
		}
		if found {
			totalSize += rec.Size
		}
	}
	fmt.Printf("files:    %d\n", len(pkg.Paths))
	fmt.Printf("size:     %d bytes\n", totalSize)
	return nil
}
