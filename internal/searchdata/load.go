package searchdata

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/jcdickinson/doxsearch/internal/index"
	"golang.org/x/sync/errgroup"
)

// File is one raw search-data script.
type File struct {
	Name string
	Data []byte
}

// ReadDir reads the search-data scripts of a Doxygen search/ directory.
func ReadDir(dir string) ([]File, error) {
	return ReadFS(os.DirFS(dir), ".")
}

// ReadFS reads search-data scripts from dir in fsys. When the directory has
// all_*.js files only those are read, since they aggregate every category;
// otherwise every script holding a searchData literal is read. Files are
// ordered the way Doxygen numbers them.
func ReadFS(fsys fs.FS, dir string) ([]File, error) {
	dirEntries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var all, other []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".js") {
			continue
		}
		if strings.HasPrefix(name, "all_") {
			all = append(all, name)
		} else {
			other = append(other, name)
		}
	}

	names := other
	if len(all) > 0 {
		names = all
	}
	slices.SortFunc(names, compareScriptNames)

	var files []File
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		// search.js, searchdata.js and friends carry no entries
		if !bytes.Contains(data, []byte("var searchData")) {
			continue
		}
		files = append(files, File{Name: name, Data: data})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no search data scripts in %s", dir)
	}
	return files, nil
}

// compareScriptNames orders "functions_9.js" before "functions_10.js" and
// keeps hex-named files ("all_5f.js", "all_61.js") in character order.
func compareScriptNames(a, b string) int {
	ap, as, _ := strings.Cut(strings.TrimSuffix(a, ".js"), "_")
	bp, bs, _ := strings.Cut(strings.TrimSuffix(b, ".js"), "_")
	if c := cmp.Compare(ap, bp); c != 0 {
		return c
	}
	if c := cmp.Compare(len(as), len(bs)); c != 0 {
		return c
	}
	return cmp.Compare(as, bs)
}

// ParseFiles parses files concurrently and concatenates their entries in
// file order.
func ParseFiles(ctx context.Context, files []File) ([]index.Entry, error) {
	parsed := make([][]index.Entry, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries, err := Parse(f.Name, f.Data)
			if err != nil {
				return err
			}
			parsed[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var entries []index.Entry
	for _, p := range parsed {
		entries = append(entries, p...)
	}
	return entries, nil
}

// Build parses files and builds a table from them.
func Build(ctx context.Context, files []File) (*index.Table, error) {
	entries, err := ParseFiles(ctx, files)
	if err != nil {
		return nil, err
	}
	t, err := index.New(entries)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	return t, nil
}
