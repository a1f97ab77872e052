// Command lattice compiles model files into build artifacts.
//
//	lattice build [-out dir] [-schema] [-contexts pkg] model.lat...
//	lattice watch [-out dir] [-schema] [-contexts pkg] model.lat...
//
// build compiles each root model file (with its imports) into a msgpack
// artifact next to it, optionally emitting the GraphQL SDL and the Go
// context bindings. watch rebuilds whenever a loaded model file changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/latticeql/lattice"
	"github.com/latticeql/lattice/gen"
	"github.com/latticeql/lattice/gqlschema"
	"github.com/latticeql/lattice/ir"
	"github.com/latticeql/lattice/parser"
	"github.com/latticeql/lattice/typecheck"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("lattice: ")
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "build":
		opts, roots := parseFlags("build", os.Args[2:])
		if err := buildAll(roots, opts); err != nil {
			fail(err)
		}
	case "watch":
		opts, roots := parseFlags("watch", os.Args[2:])
		if err := watch(roots, opts); err != nil {
			fail(err)
		}
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lattice {build|watch} [-out dir] [-schema] [-contexts pkg] model.lat...")
	os.Exit(2)
}

type options struct {
	outDir      string
	emitSchema  bool
	contextsPkg string
}

func parseFlags(name string, args []string) (options, []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	outDir := fs.String("out", "", "output directory (defaults beside each root)")
	schema := fs.Bool("schema", false, "also emit the GraphQL SDL")
	contexts := fs.String("contexts", "", "also emit Go context bindings for the given package name")
	fs.Parse(args)
	if fs.NArg() == 0 {
		usage()
	}
	return options{outDir: *outDir, emitSchema: *schema, contextsPkg: *contexts}, fs.Args()
}

// fail prints batched diagnostics one per line before exiting.
func fail(err error) {
	if ds, ok := lattice.AsDiagnostics(err); ok {
		for _, d := range ds {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		os.Exit(1)
	}
	log.Fatal(err)
}

// buildAll compiles every root in parallel.
func buildAll(roots []string, opts options) error {
	g, _ := errgroup.WithContext(context.Background())
	for _, root := range roots {
		root := root
		g.Go(func() error {
			_, err := buildOne(root, opts)
			return err
		})
	}
	return g.Wait()
}

// buildOne compiles a single root model and returns the files it loaded,
// which watch mode uses as its watch set.
func buildOne(root string, opts options) ([]string, error) {
	parsed, err := parser.ParseFile(root)
	if err != nil {
		return nil, err
	}
	checked, err := typecheck.Check(parsed)
	if err != nil {
		return parsed.Imports, err
	}
	sys := ir.Snapshot(checked)

	base := strings.TrimSuffix(filepath.Base(root), filepath.Ext(root))
	dir := opts.outDir
	if dir == "" {
		dir = filepath.Dir(root)
	}

	artifact, err := os.Create(filepath.Join(dir, base+".lir"))
	if err != nil {
		return parsed.Imports, err
	}
	defer artifact.Close()
	if err := ir.EncodeArtifact(artifact, sys); err != nil {
		return parsed.Imports, err
	}

	if opts.emitSchema {
		schema, err := os.Create(filepath.Join(dir, base+".graphql"))
		if err != nil {
			return parsed.Imports, err
		}
		defer schema.Close()
		if err := gqlschema.Emit(schema, sys); err != nil {
			return parsed.Imports, err
		}
	}

	if opts.contextsPkg != "" {
		src, err := gen.Contexts(sys, opts.contextsPkg)
		if err != nil {
			return parsed.Imports, err
		}
		name := filepath.Join(dir, base+"_contexts.go")
		if err := os.WriteFile(name, []byte(src), 0o644); err != nil {
			return parsed.Imports, err
		}
	}

	log.Printf("built %s (%d types, %d modules)", root, len(sys.Types.Names), len(sys.Modules))
	return parsed.Imports, nil
}

// watch rebuilds roots as their loaded files change. A failed build
// reports and keeps watching.
func watch(roots []string, opts options) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch directories rather than files: editors replace files on
	// save, which drops file-level watches.
	watched := make(map[string]bool)
	watchFiles := func(files []string) {
		for _, f := range files {
			dir := filepath.Dir(f)
			if watched[dir] {
				continue
			}
			if err := w.Add(dir); err != nil {
				log.Printf("watch %s: %v", dir, err)
				continue
			}
			watched[dir] = true
		}
	}

	rebuild := func() {
		for _, root := range roots {
			files, err := buildOne(root, opts)
			if err != nil {
				if ds, ok := lattice.AsDiagnostics(err); ok {
					for _, d := range ds {
						log.Print(d.Error())
					}
				} else {
					log.Print(err)
				}
			}
			watchFiles(files)
			if len(files) == 0 {
				watchFiles([]string{root})
			}
		}
	}
	rebuild()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Ext(ev.Name) != ".lat" {
				continue
			}
			log.Printf("%s changed, rebuilding", ev.Name)
			rebuild()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Print(err)
		}
	}
}
