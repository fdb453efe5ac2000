// Package indexer implements the Indexer (spec §4.4): it walks every
// registered location, matches files against the schema, and produces a
// new Index.
package indexer

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jaa/blackbird/internal/index"
	"github.com/jaa/blackbird/internal/location"
	"github.com/jaa/blackbird/internal/schema"
)

var cdPattern = regexp.MustCompile(`^CD\d+$`)

// Build walks every location in reg, matching files against sch, and
// returns a finalized Index. now stamps the index's LastUpdated field.
func Build(reg *location.Registry, sch *schema.Schema, now time.Time) (*index.Index, error) {
	idx := index.New()
	for _, name := range reg.Names() {
		root, ok := reg.Path(name)
		if !ok {
			continue
		}
		if err := walkLocation(idx, sch, name, root); err != nil {
			return nil, fmt.Errorf("index location %s: %w", name, err)
		}
	}
	idx.Touch(now)
	idx.Finalize()
	return idx, nil
}

func walkLocation(idx *index.Index, sch *schema.Schema, locName, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".blackbird" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		segments := strings.Split(rel, "/")
		if len(segments) < 3 {
			// Need at minimum Artist/Album/file.
			return nil
		}

		filename := segments[len(segments)-1]
		matches := sch.Match(filename)
		if len(matches) == 0 {
			return nil
		}

		artist := segments[0]
		album := segments[1]
		cd := ""
		if len(segments) == 4 {
			candidate := segments[2]
			if !cdPattern.MatchString(candidate) {
				return nil
			}
			cd = candidate
		} else if len(segments) != 3 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		symbolic := location.Symbolize(locName, rel)
		for _, m := range matches {
			def := sch.Components[m.Component]
			if err := idx.AddFile(symbolic, info.Size(), m.Component, def.Multiple, artist, album, cd, m.BaseName); err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureDir makes sure a location's .blackbird subdirectory exists so
// downstream persistence (schema, registry, index, operation state) never
// has to race a missing parent directory.
func EnsureDir(root string) error {
	return os.MkdirAll(filepath.Join(root, ".blackbird"), 0o755)
}
