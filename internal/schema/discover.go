package schema

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// discoverableExt lists the file extensions discovery considers; anything
// else on disk (README files, .blackbird state, etc.) is ignored.
var discoverableExt = map[string]bool{
	".mp3": true, ".flac": true, ".wav": true, ".m4a": true, ".ogg": true,
	".json": true, ".txt": true, ".lrc": true,
}

var suffixPattern = regexp.MustCompile(`_(\S+)$`)

type discoveredKey struct {
	pattern  string
	multiple bool
}

// Discover walks root (or, if sampleArtists is non-empty, only those
// artist subdirectories) and derives a schema from the component suffixes
// it observes on disk, per spec §4.2's backward-scan algorithm.
func Discover(root string, sampleArtists []string) (*Schema, error) {
	names, err := collectFilenames(root, sampleArtists)
	if err != nil {
		return nil, err
	}
	return DiscoverFromNames(names)
}

func collectFilenames(root string, sampleArtists []string) ([]string, error) {
	var names []string
	walkRoot := root
	visit := func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		names = append(names, d.Name())
		return nil
	}

	if len(sampleArtists) == 0 {
		if err := filepath.WalkDir(walkRoot, visit); err != nil {
			return nil, err
		}
		return names, nil
	}

	for _, artist := range sampleArtists {
		artistDir := filepath.Join(root, artist)
		if err := filepath.WalkDir(artistDir, visit); err != nil {
			if fs.ValidPath(artist) {
				continue
			}
			return nil, err
		}
	}
	return names, nil
}

// DiscoverFromNames is the pure part of discovery: given a flat list of
// file basenames, derive component definitions by grouping files that
// share a (pattern, multiple) shape.
func DiscoverFromNames(names []string) (*Schema, error) {
	grouped := map[discoveredKey]bool{}

	for _, name := range names {
		key, ok := classify(name)
		if !ok {
			continue
		}
		grouped[key] = true
	}

	s := New()
	keys := make([]discoveredKey, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].pattern < keys[j].pattern })

	for _, key := range keys {
		canonical := canonicalName(key)
		if _, exists := s.Components[canonical]; exists {
			continue
		}
		if err := s.checkAmbiguity(key.pattern); err != nil {
			return nil, err
		}
		s.Components[canonical] = ComponentDef{Pattern: key.pattern, Multiple: key.multiple}
	}
	return s, nil
}

// classify implements the per-file half of the backward-scan algorithm:
// strip the extension, find the longest trailing "_<suffix>" tail, and
// decide whether that tail's numeric portion should become a wildcard.
func classify(filename string) (discoveredKey, bool) {
	ext := compoundExt(filename)
	if ext == "" || !discoverableExt[simpleExt(ext)] {
		return discoveredKey{}, false
	}
	stem := strings.TrimSuffix(filename, ext)

	m := suffixPattern.FindStringSubmatch(stem)
	if m == nil {
		// No "_<suffix>" tail: e.g. "track.mir.json" with a bare compound
		// extension and no literal infix. The compound extension itself
		// carries the component identity.
		if strings.Count(ext, ".") < 2 {
			return discoveredKey{}, false
		}
		return discoveredKey{pattern: "*" + ext, multiple: false}, true
	}

	suffix := m[1]
	if digits := trailingDigits.FindString(suffix); digits != "" && digits != suffix {
		word := strings.TrimSuffix(suffix, digits)
		return discoveredKey{pattern: "*_" + word + "*" + ext, multiple: true}, true
	}
	return discoveredKey{pattern: "*_" + suffix + ext, multiple: false}, true
}

// canonicalName derives the component's persisted name from its
// discovered pattern, per the mapping rules in spec §4.2 step 3.
func canonicalName(key discoveredKey) string {
	ext := compoundExt(key.pattern)
	stem := strings.TrimSuffix(key.pattern, ext)
	word := strings.TrimPrefix(stem, "*_")
	word = strings.TrimSuffix(word, "*")

	if word == "" {
		// Bare compound extension, e.g. "*.mir.json" -> "mir".
		trimmed := strings.TrimPrefix(ext, ".")
		if idx := strings.IndexByte(trimmed, '.'); idx > 0 {
			return trimmed[:idx]
		}
		return trimmed
	}

	switch simpleExt(ext) {
	case ".mp3", ".flac", ".wav", ".m4a", ".ogg":
		if strings.HasSuffix(word, "audio") {
			return word
		}
		return word + "_audio"
	case ".json":
		if word == "lyrics" {
			return "lyrics"
		}
		return word
	default:
		return word
	}
}

// compoundExt returns the full multi-dot extension of a filename, e.g.
// "track.mir.json" -> ".mir.json", "track.mp3" -> ".mp3".
func compoundExt(filename string) string {
	first := strings.IndexByte(filename, '.')
	if first < 0 {
		return ""
	}
	return filename[first:]
}

// simpleExt returns just the final extension segment, e.g.
// ".mir.json" -> ".json".
func simpleExt(ext string) string {
	idx := strings.LastIndexByte(ext, '.')
	if idx < 0 {
		return ext
	}
	return ext[idx:]
}
