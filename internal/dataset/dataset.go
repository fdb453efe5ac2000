// Package dataset owns the composition of the Location Registry, Schema
// and Index into one handle (the "Dataset owner" from SPEC_FULL.md §2),
// with a one-way mutation flow: callers mutate Schema/Registry through
// Dataset's methods, and Reindex is the only thing that rebuilds Index.
package dataset

import (
	"fmt"
	"time"

	"github.com/jaa/blackbird/internal/index"
	"github.com/jaa/blackbird/internal/indexer"
	"github.com/jaa/blackbird/internal/location"
	"github.com/jaa/blackbird/internal/schema"
)

// Dataset is the primary root of a Blackbird dataset: the location
// registry, the component schema, and the built index.
type Dataset struct {
	Root     string
	Registry *location.Registry
	Schema   *schema.Schema
	Index    *index.Index
}

// Open loads (or synthesizes) the registry and schema under root, and
// loads the persisted index if present.
func Open(root string) (*Dataset, error) {
	reg, err := location.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	sch, err := schema.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	idx, err := index.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	if err := indexer.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("ensure .blackbird dir: %w", err)
	}

	return &Dataset{Root: root, Registry: reg, Schema: sch, Index: idx}, nil
}

// Reindex rebuilds Index from scratch by walking every registered
// location, and persists it. It is the only operation that mutates Index,
// per the Dataset owner's one-way mutation flow: every sync and move
// triggers Reindex on completion rather than hand-patching the in-memory
// index.
func (d *Dataset) Reindex(now time.Time) error {
	idx, err := indexer.Build(d.Registry, d.Schema, now)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	if err := idx.Save(d.Root); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	d.Index = idx
	return nil
}

// SaveSchema persists Schema, e.g. after AddComponent or a sync's
// MergeRemote.
func (d *Dataset) SaveSchema() error {
	return d.Schema.Save(d.Root)
}

// SaveRegistry persists Registry, e.g. after AddLocation/RemoveLocation.
func (d *Dataset) SaveRegistry() error {
	return d.Registry.Save()
}

// AddLocation registers a new location and persists the registry.
func (d *Dataset) AddLocation(name, absPath string) error {
	if err := d.Registry.Add(name, absPath); err != nil {
		return err
	}
	return d.SaveRegistry()
}

// RemoveLocation unregisters a location, refusing if it is still
// referenced by Index unless force is set, and persists the registry.
func (d *Dataset) RemoveLocation(name string, force bool) error {
	inUse := func(locName string) bool {
		stats, ok := d.Index.StatsByLocation[locName]
		return ok && stats.Files > 0
	}
	if err := d.Registry.Remove(name, force, inUse); err != nil {
		return err
	}
	return d.SaveRegistry()
}
