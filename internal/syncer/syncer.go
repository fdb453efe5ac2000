// Package syncer implements the Synchronizer (spec §4.6): given a remote
// index and schema, a local dataset handle, and a filter set, it builds a
// work plan and executes it with a parallel worker pool, resume,
// and cancellation support.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/jaa/blackbird/internal/index"
	"github.com/jaa/blackbird/internal/location"
	"github.com/jaa/blackbird/internal/opstate"
	"github.com/jaa/blackbird/internal/schema"
	"github.com/jaa/blackbird/internal/transport"
)

// Filters narrows the remote index down to the files a sync should
// consider, per spec §4.6.
type Filters struct {
	Components       []string
	Artists          []string
	Albums           []string
	MissingComponent string
	Proportion       float64 // (0,1], 0 means "all"
	Offset           float64 // [0,1)
}

func (f Filters) wantsComponent(name string) bool {
	if len(f.Components) == 0 {
		return true
	}
	for _, c := range f.Components {
		if c == name {
			return true
		}
	}
	return false
}

func matchesAnyGlob(patterns []string, value string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, value); ok {
			return true
		}
	}
	return false
}

// Item is one file the plan has decided to consider.
type Item struct {
	RemoteSymbolic string
	LocalSymbolic  string
	LocalAbs       string
	Size           int64
	Hash           string
	Skip           bool // pre-skipped: local file already present with matching size
}

// Plan is the result of plan construction: the work set plus the
// Operation State tracking it.
type Plan struct {
	Items []Item
	State *opstate.State
}

// FileError wraps a retryable download failure for a single plan item.
type FileError struct {
	Item Item
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("sync %s: %v", e.Item.RemoteSymbolic, e.Err) }
func (e *FileError) Unwrap() error { return e.Err }

// BuildPlan merges the required remote schema components into localSchema,
// walks the remote index applying filters, resolves local targets, and
// pre-skips files already present with the correct size. stateDir is the
// local dataset's primary root (where .blackbird lives).
func BuildPlan(localSchema *schema.Schema, remoteSchema *schema.Schema, remoteIdx *index.Index, localReg *location.Registry, targetLocation, remoteLocationName, stateDir string, filters Filters, now time.Time) (*Plan, error) {
	if err := localSchema.MergeRemote(remoteSchema, filters.Components); err != nil {
		return nil, err
	}

	artistAllow := selectArtists(remoteIdx, filters)

	var items []Item
	var hashes []string
	for _, t := range remoteIdx.Tracks {
		if artistAllow != nil {
			if !artistAllow[t.Artist] {
				continue
			}
		}
		if !matchesAnyGlob(filters.Albums, t.AlbumPath) {
			continue
		}
		if filters.MissingComponent != "" && len(t.Files[filters.MissingComponent]) > 0 {
			continue
		}

		for component, paths := range t.Files {
			if !filters.wantsComponent(component) {
				continue
			}
			for _, remoteSymbolic := range paths {
				localSymbolic, err := location.WithLocation(remoteSymbolic, targetLocation)
				if err != nil {
					return nil, err
				}
				localAbs, err := localReg.Resolve(localSymbolic)
				if err != nil {
					return nil, err
				}

				size := t.FileSizes[remoteSymbolic]
				hash := strconv.FormatUint(index.Hash(remoteSymbolic), 16)

				item := Item{
					RemoteSymbolic: remoteSymbolic,
					LocalSymbolic:  localSymbolic,
					LocalAbs:       localAbs,
					Size:           size,
					Hash:           hash,
				}
				if info, err := os.Stat(localAbs); err == nil && info.Size() == size {
					item.Skip = true
				}
				items = append(items, item)
				if !item.Skip {
					hashes = append(hashes, hash)
				}
			}
		}
	}

	state, err := opstate.New(stateDir, "sync", remoteLocationName, targetLocation, filters.Components, hashes, now)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Skip {
			state.Done(item.Hash)
		}
	}

	return &Plan{Items: items, State: state}, nil
}

// selectArtists applies the artists glob filter and the deterministic
// proportion/offset slice (Open Question 4) over the remote index's sorted
// artist list. A nil return means "no artist restriction".
func selectArtists(remoteIdx *index.Index, filters Filters) map[string]bool {
	if len(filters.Artists) == 0 && filters.Proportion <= 0 {
		return nil
	}

	all := remoteIdx.SortedArtists()
	var globbed []string
	for _, a := range all {
		if matchesAnyGlob(filters.Artists, a) {
			globbed = append(globbed, a)
		}
	}
	sort.Strings(globbed)

	sliced := globbed
	if filters.Proportion > 0 && filters.Proportion < 1 {
		n := len(globbed)
		start := int(filters.Offset * float64(n))
		if start < 0 {
			start = 0
		}
		if start > n {
			start = n
		}
		count := int(math.Ceil(filters.Proportion * float64(n)))
		end := start + count
		if end > n {
			end = n
		}
		sliced = globbed[start:end]
	}

	allow := make(map[string]bool, len(sliced))
	for _, a := range sliced {
		allow[a] = true
	}
	return allow
}

// downloader is the subset of transport.Client Execute needs, so tests can
// supply a fake.
type downloader interface {
	Download(ctx context.Context, remoteRel, localAbs string) (int64, error)
}

var backoffSchedule = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// Execute runs plan.Items through a pool of parallel workers, retrying each
// download up to 3 times with exponential backoff and verifying size
// before marking the state entry done. Cancellation via ctx stops workers
// taking new items and aborts in-flight downloads: an interrupted file's
// partial copy is removed and its entry stays pending (or is marked failed
// if that was its last attempt); remaining items stay pending.
func Execute(ctx context.Context, plan *Plan, remoteLocationName string, dl downloader, parallel int) error {
	if parallel < 1 {
		parallel = 1
	}

	pending := make([]Item, 0, len(plan.Items))
	for _, item := range plan.Items {
		if !item.Skip {
			pending = append(pending, item)
		}
	}

	items := make(chan Item)
	g, _ := errgroup.WithContext(ctx)

	for i := 0; i < parallel; i++ {
		g.Go(func() error {
			for item := range items {
				processItem(ctx, item, remoteLocationName, dl, plan.State)
			}
			return nil
		})
	}

	go func() {
		defer close(items)
		for _, item := range pending {
			select {
			case items <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	return g.Wait()
}

func processItem(ctx context.Context, item Item, remoteLocationName string, dl downloader, state *opstate.State) {
	if ctx.Err() != nil {
		return
	}
	if err := os.MkdirAll(path.Dir(item.LocalAbs), 0o755); err != nil {
		state.Fail(item.Hash, err.Error())
		return
	}

	_, remoteRel, err := location.Split(item.RemoteSymbolic)
	if err != nil {
		remoteRel = strings.TrimPrefix(item.RemoteSymbolic, remoteLocationName+"/")
	}

	var lastErr error
	for attempt, delay := range backoffSchedule {
		if ctx.Err() != nil {
			return
		}
		n, err := dl.Download(ctx, remoteRel, item.LocalAbs)
		if err == nil && n == item.Size {
			state.Done(item.Hash)
			return
		}
		if err == nil {
			err = fmt.Errorf("size mismatch: got %d want %d", n, item.Size)
		}
		lastErr = err
		os.Remove(item.LocalAbs)
		if attempt < len(backoffSchedule)-1 {
			jitter := time.Duration(rand.Int63n(int64(delay) / 4))
			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return
			}
		}
	}

	state.Fail(item.Hash, lastErr.Error())
}

var ErrResumeNotFound = errors.New("syncer: operation state file not found")

// Resume reloads a persisted Operation State and reconstructs the Plan
// items still needing work (pending or failed), using remoteIdx's
// hash->path lookup to recover each item's remote symbolic path and size.
func Resume(stateDir, operationID string, remoteIdx *index.Index, localReg *location.Registry) (*Plan, error) {
	state, err := opstate.Resume(stateDir, operationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResumeNotFound, err)
	}

	doc := state.Snapshot()
	var items []Item
	for _, hash := range state.Pending() {
		h, err := strconv.ParseUint(hash, 16, 64)
		if err != nil {
			continue
		}
		info, ok := remoteIdx.FileInfoByHash[h]
		if !ok {
			continue
		}
		localSymbolic, err := location.WithLocation(info.Path, doc.TargetLocation)
		if err != nil {
			return nil, err
		}
		localAbs, err := localReg.Resolve(localSymbolic)
		if err != nil {
			return nil, err
		}
		item := Item{
			RemoteSymbolic: info.Path,
			LocalSymbolic:  localSymbolic,
			LocalAbs:       localAbs,
			Size:           info.Size,
			Hash:           hash,
		}
		if fi, err := os.Stat(localAbs); err == nil && fi.Size() == info.Size {
			item.Skip = true
			state.Done(item.Hash)
		}
		items = append(items, item)
	}

	return &Plan{Items: items, State: state}, nil
}
