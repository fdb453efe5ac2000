// Package schema implements the Schema component (spec §4.2): a
// declarative set of component definitions (glob pattern, multiple flag,
// description), persisted as schema.json, with pattern-uniqueness
// enforcement and filename matching.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/jaa/blackbird/internal/fsutil"
)

const fileName = "schema.json"
const CurrentVersion = "1"

var (
	ErrNameExists        = errors.New("schema: component name already exists")
	ErrPatternAmbiguous  = errors.New("schema: pattern ambiguous with an existing component")
	ErrSchemaConflict    = errors.New("schema: component maps to different patterns locally and remotely")
	ErrUnknownComponent  = errors.New("schema: unknown component")
)

// ComponentDef is a single named file category within a track.
type ComponentDef struct {
	Pattern     string `json:"pattern"`
	Multiple    bool   `json:"multiple"`
	Description string `json:"description,omitempty"`
}

// Schema is the declarative set of component definitions for a dataset.
// Structure and Sync are informational sibling documents preserved
// verbatim so round-tripping a foreign schema.json never loses data.
type Schema struct {
	Version    string                  `json:"version"`
	Components map[string]ComponentDef `json:"components"`
	Structure  map[string]any          `json:"structure,omitempty"`
	Sync       map[string]any          `json:"sync,omitempty"`
}

// New returns an empty schema at the current version.
func New() *Schema {
	return &Schema{Version: CurrentVersion, Components: map[string]ComponentDef{}}
}

// Load reads schema.json from dir/.blackbird. A missing file yields an
// empty schema, not an error.
func Load(root string) (*Schema, error) {
	payload, err := os.ReadFile(path(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read %s: %w", path(root), err)
	}
	return Decode(payload)
}

// Decode parses a schema.json document from bytes, e.g. as fetched over
// the wire by the Transport.
func Decode(payload []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if s.Components == nil {
		s.Components = map[string]ComponentDef{}
	}
	if strings.TrimSpace(s.Version) == "" {
		s.Version = CurrentVersion
	}
	return &s, nil
}

func path(root string) string {
	return root + "/.blackbird/" + fileName
}

// Save persists the schema atomically.
func (s *Schema) Save(root string) error {
	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	return fsutil.AtomicWriteBytes(path(root), payload, 0o644)
}

// AddComponent registers a new component definition, enforcing name
// uniqueness and pattern-uniqueness against the existing schema.
func (s *Schema) AddComponent(name, pattern string, multiple bool, description string) error {
	name = strings.TrimSpace(name)
	pattern = strings.TrimSpace(pattern)
	if name == "" {
		return fmt.Errorf("schema: component name must not be empty")
	}
	if _, exists := s.Components[name]; exists {
		return fmt.Errorf("%w: %s", ErrNameExists, name)
	}
	if err := s.checkAmbiguity(pattern); err != nil {
		return err
	}

	if s.Components == nil {
		s.Components = map[string]ComponentDef{}
	}
	s.Components[name] = ComponentDef{Pattern: pattern, Multiple: multiple, Description: description}
	return nil
}

// checkAmbiguity verifies that the candidate pattern cannot match the same
// concrete filename as any existing pattern (spec §3.2 invariant 3), by
// generating representative sample filenames from each pattern and
// cross-matching them with doublestar.
func (s *Schema) checkAmbiguity(pattern string) error {
	for existingName, def := range s.Components {
		if patternsOverlap(pattern, def.Pattern) {
			return fmt.Errorf("%w: %q overlaps existing component %q (%q)", ErrPatternAmbiguous, pattern, existingName, def.Pattern)
		}
	}
	return nil
}

func patternsOverlap(a, b string) bool {
	if a == b {
		return true
	}
	for _, sample := range sampleFilenames(a) {
		if ok, _ := doublestar.Match(b, sample); ok {
			return true
		}
	}
	for _, sample := range sampleFilenames(b) {
		if ok, _ := doublestar.Match(a, sample); ok {
			return true
		}
	}
	return false
}

// sampleFilenames generates a small set of plausible concrete filenames
// that the glob pattern would match, used for the ambiguity heuristic.
func sampleFilenames(pattern string) []string {
	const placeholder = "sample"
	replaced := strings.ReplaceAll(pattern, "*", placeholder)
	replaced = strings.ReplaceAll(replaced, "?", "x")
	return []string{replaced, strings.ToUpper(replaced)}
}

// Match returns every (component name, base name) pair the filename
// matches. A filename can legitimately match more than one component only
// if the schema itself is inconsistent. AddComponent rejects such a
// component; Decode does not check for it. Match reports every hit so
// callers can surface the inconsistency.
func (s *Schema) Match(filename string) []Match {
	var matches []Match
	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := s.Components[name]
		ok, err := doublestar.Match(def.Pattern, filename)
		if err != nil || !ok {
			continue
		}
		base := stripSuffix(filename, def.Pattern)
		matches = append(matches, Match{Component: name, BaseName: base})
	}
	return matches
}

// Match pairs a matched component name with the base name derived by
// stripping the component's suffix from the matched filename.
type Match struct {
	Component string
	BaseName  string
}

var trailingDigits = regexp.MustCompile(`\d+$`)

// stripSuffix removes the portion of filename that the glob's literal
// (non-wildcard) suffix matched, yielding the track base name. For a
// "multiple" component whose pattern wildcards out a numeric tail
// (*_word*.ext), the digits immediately preceding the extension are
// stripped along with the suffix.
func stripSuffix(filename, pattern string) string {
	ext := extOf(pattern)
	name := strings.TrimSuffix(filename, ext)

	// Pattern looks like "*_suffix" (no inner wildcard beyond the leading
	// one): the suffix is everything after the first '*'.
	stem := strings.TrimSuffix(pattern, ext)
	firstStar := strings.IndexByte(stem, '*')
	if firstStar < 0 {
		return name
	}
	literalSuffix := stem[firstStar+1:]
	if idx := strings.IndexByte(literalSuffix, '*'); idx >= 0 {
		// multiple:true pattern, e.g. "*_section*": strip the literal
		// prefix tail and any trailing digits before it.
		prefix := literalSuffix[:idx]
		cut := strings.LastIndex(name, prefix)
		if cut < 0 {
			return name
		}
		return name[:cut]
	}

	if strings.HasSuffix(name, literalSuffix) {
		name = strings.TrimSuffix(name, literalSuffix)
	}
	return name
}

func extOf(pattern string) string {
	// Preserve compound extensions such as ".mir.json": everything from
	// the first '.' after the last wildcard segment.
	idx := strings.IndexByte(pattern, '.')
	if idx < 0 {
		return ""
	}
	return pattern[idx:]
}

// Validate re-checks pattern-uniqueness across every pair of components
// (spec §3.2 invariant 3), useful for verifying a schema loaded from disk
// or merged from a remote rather than built up one AddComponent at a time.
func (s *Schema) Validate() error {
	names := make([]string, 0, len(s.Components))
	for name := range s.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, a := range names {
		for _, b := range names[i+1:] {
			if patternsOverlap(s.Components[a].Pattern, s.Components[b].Pattern) {
				return fmt.Errorf("%w: %q and %q", ErrPatternAmbiguous, a, b)
			}
		}
	}
	return nil
}

// MergeRemote merges remote component definitions that are required by
// the caller (typically the Synchronizer's requested component set) and
// absent locally. Existing local definitions are never overwritten; a
// name present on both sides with a different pattern is a conflict.
func (s *Schema) MergeRemote(remote *Schema, required []string) error {
	wanted := map[string]struct{}{}
	for _, name := range required {
		wanted[name] = struct{}{}
	}

	for name, remoteDef := range remote.Components {
		if len(required) > 0 {
			if _, ok := wanted[name]; !ok {
				continue
			}
		}
		localDef, exists := s.Components[name]
		if !exists {
			if s.Components == nil {
				s.Components = map[string]ComponentDef{}
			}
			s.Components[name] = remoteDef
			continue
		}
		if localDef.Pattern != remoteDef.Pattern {
			return fmt.Errorf("%w: %s", ErrSchemaConflict, name)
		}
	}
	return nil
}
