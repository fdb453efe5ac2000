// Package location implements the Location Registry (spec §4.1): a
// persisted mapping of location name to absolute root path, and the
// symbolic-path resolution that decouples the on-disk layout of a dataset
// from the physical roots it is built from.
package location

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jaa/blackbird/internal/fsutil"
)

// Main is the location name that always exists.
const Main = "Main"

const locationsFileName = "locations.json"

var (
	ErrLocationExists   = errors.New("location: name already exists")
	ErrPathInvalid      = errors.New("location: path is not an existing directory")
	ErrLocationInUse    = errors.New("location: in use by the index")
	ErrLastLocation     = errors.New("location: cannot remove the last remaining location")
	ErrUnknownLocation  = errors.New("location: unknown location")
	ErrMalformedSymbolic = errors.New("location: malformed symbolic path")
)

// Registry is the in-memory, disk-backed location name -> absolute path
// mapping. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	root string // primary dataset root, where .blackbird/ lives
	byName map[string]string
}

// Load reads locations.json under primaryRoot/.blackbird. If the file is
// absent, a registry containing only {Main: primaryRoot} is synthesized,
// per spec §4.1.
func Load(primaryRoot string) (*Registry, error) {
	absRoot, err := filepath.Abs(primaryRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve primary root %q: %w", primaryRoot, err)
	}

	reg := &Registry{root: absRoot, byName: map[string]string{}}

	payload, err := os.ReadFile(statePath(absRoot))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			reg.byName[Main] = absRoot
			return reg, nil
		}
		return nil, fmt.Errorf("read %s: %w", statePath(absRoot), err)
	}

	var stored map[string]string
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("parse %s: %w", statePath(absRoot), err)
	}
	if len(stored) == 0 {
		stored = map[string]string{Main: absRoot}
	}
	reg.byName = stored
	return reg, nil
}

func statePath(root string) string {
	return filepath.Join(root, ".blackbird", locationsFileName)
}

// Save persists the registry to locations.json atomically.
func (r *Registry) Save() error {
	r.mu.RLock()
	snapshot := make(map[string]string, len(r.byName))
	for k, v := range r.byName {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal locations: %w", err)
	}
	return fsutil.AtomicWriteBytes(statePath(r.root), payload, 0o644)
}

// Names returns all location names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the absolute root path for a registered location.
func (r *Registry) Path(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[name]
	return p, ok
}

// Add registers a new location. The directory must already exist.
func (r *Registry) Add(name, absPath string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: invalid location name %q", ErrMalformedSymbolic, name)
	}

	info, err := os.Stat(absPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrPathInvalid, absPath)
	}
	resolved, err := filepath.Abs(absPath)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", absPath, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrLocationExists, name)
	}
	r.byName[name] = resolved
	return nil
}

// InUseChecker reports whether any index entry still references name.
type InUseChecker func(name string) bool

// Remove unregisters a location. It refuses to remove the last remaining
// location, and refuses to remove a location still referenced by the
// index unless force is true.
func (r *Registry) Remove(name string, force bool, inUse InUseChecker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownLocation, name)
	}
	if len(r.byName) == 1 {
		return ErrLastLocation
	}
	if !force && inUse != nil && inUse(name) {
		return fmt.Errorf("%w: %s", ErrLocationInUse, name)
	}
	delete(r.byName, name)
	return nil
}

// Resolve turns a symbolic path "LocationName/relative/posix/path" into an
// absolute filesystem path.
func (r *Registry) Resolve(symbolic string) (string, error) {
	name, rel, err := Split(symbolic)
	if err != nil {
		return "", err
	}

	root, ok := r.Path(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownLocation, name)
	}
	return filepath.Join(root, filepath.FromSlash(rel)), nil
}

// Symbolize builds a symbolic path from a location name and a relative
// POSIX path under that location's root.
func Symbolize(locationName, relativePath string) string {
	clean := path.Clean(filepath.ToSlash(relativePath))
	clean = strings.TrimPrefix(clean, "./")
	return locationName + "/" + clean
}

// Split parses "LocationName/relative/posix/path" into its two halves.
// The relative path may not be empty: "Location/" alone is invalid.
func Split(symbolic string) (name, rel string, err error) {
	trimmed := strings.TrimSpace(symbolic)
	if trimmed == "" {
		return "", "", fmt.Errorf("%w: empty symbolic path", ErrMalformedSymbolic)
	}
	idx := strings.IndexByte(trimmed, '/')
	if idx <= 0 {
		return "", "", fmt.Errorf("%w: %q has no location segment", ErrMalformedSymbolic, symbolic)
	}
	name = trimmed[:idx]
	rel = trimmed[idx+1:]
	if strings.TrimSpace(rel) == "" {
		return "", "", fmt.Errorf("%w: %q has empty relative path", ErrMalformedSymbolic, symbolic)
	}
	return name, rel, nil
}

// WithLocation replaces the leading location segment of a symbolic path,
// used when computing a local target path during sync and when moving
// files between locations.
func WithLocation(symbolic, newLocation string) (string, error) {
	_, rel, err := Split(symbolic)
	if err != nil {
		return "", err
	}
	return Symbolize(newLocation, rel), nil
}
