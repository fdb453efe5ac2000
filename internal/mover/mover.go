// Package mover implements the Mover (spec §4.8): physical relocation of
// files between locations, reusing Operation State for resume.
package mover

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jaa/blackbird/internal/index"
	"github.com/jaa/blackbird/internal/location"
	"github.com/jaa/blackbird/internal/opstate"
)

// Selection picks which files a move touches. Exactly one of Folders or
// SizeBudget should be set, per spec §4.8's two selection modes.
type Selection struct {
	// Folders lists specific symbolic album or artist paths to move in
	// full.
	Folders []string
	// SizeBudget, if > 0, moves whole albums (never splitting one) until
	// at least this many bytes have moved.
	SizeBudget int64
}

// Plan is the set of files a move will touch, grouped for execution.
type Plan struct {
	Items []Item
	State *opstate.State
}

// Item is one file crossing locations.
type Item struct {
	SourceSymbolic string
	TargetSymbolic string
	SourceAbs      string
	TargetAbs      string
	Size           int64
	Hash           string
}

// BuildPlan selects files to move from sourceLocation to targetLocation
// per selection, and creates the backing Operation State.
func BuildPlan(idx *index.Index, reg *location.Registry, sourceLocation, targetLocation string, selection Selection, stateDir string, now time.Time) (*Plan, error) {
	albums := selectAlbums(idx, sourceLocation, selection)

	var items []Item
	var hashes []string
	for _, albumSymbolic := range albums {
		trackPaths := idx.TrackByAlbum[albumSymbolic]
		for trackPath := range trackPaths {
			track, ok := idx.Tracks[trackPath]
			if !ok {
				continue
			}
			for _, paths := range track.Files {
				for _, sourceSymbolic := range paths {
					targetSymbolic, err := location.WithLocation(sourceSymbolic, targetLocation)
					if err != nil {
						return nil, err
					}
					sourceAbs, err := reg.Resolve(sourceSymbolic)
					if err != nil {
						return nil, err
					}
					targetAbs, err := reg.Resolve(targetSymbolic)
					if err != nil {
						return nil, err
					}
					size := track.FileSizes[sourceSymbolic]
					hash := strconv.FormatUint(index.Hash(sourceSymbolic), 16)
					items = append(items, Item{
						SourceSymbolic: sourceSymbolic,
						TargetSymbolic: targetSymbolic,
						SourceAbs:      sourceAbs,
						TargetAbs:      targetAbs,
						Size:           size,
						Hash:           hash,
					})
					hashes = append(hashes, hash)
				}
			}
		}
	}

	state, err := opstate.New(stateDir, "move", sourceLocation, targetLocation, nil, hashes, now)
	if err != nil {
		return nil, err
	}
	return &Plan{Items: items, State: state}, nil
}

// selectAlbums resolves a Selection into a concrete list of symbolic album
// paths under sourceLocation, honoring the size-budget mode's "never split
// an album" rule.
func selectAlbums(idx *index.Index, sourceLocation string, selection Selection) []string {
	if len(selection.Folders) > 0 {
		var out []string
		for _, folder := range selection.Folders {
			if albumExists(idx, folder) {
				out = append(out, folder)
				continue
			}
			out = append(out, albumsUnderArtist(idx, folder)...)
		}
		sort.Strings(out)
		return out
	}

	if selection.SizeBudget > 0 {
		return albumsBySizeBudget(idx, sourceLocation, selection.SizeBudget)
	}

	return nil
}

func albumExists(idx *index.Index, symbolicAlbum string) bool {
	_, ok := idx.TrackByAlbum[symbolicAlbum]
	return ok
}

func albumsUnderArtist(idx *index.Index, symbolicArtistPath string) []string {
	locName, artist, err := location.Split(symbolicArtistPath)
	if err != nil {
		return nil
	}
	var out []string
	for album := range idx.AlbumByArtist[artist] {
		if l, _, err := location.Split(album); err == nil && l == locName {
			out = append(out, album)
		}
	}
	return out
}

func albumsBySizeBudget(idx *index.Index, sourceLocation string, budget int64) []string {
	type candidate struct {
		album string
		size  int64
	}
	var candidates []candidate
	for album, trackPaths := range idx.TrackByAlbum {
		locName, _, err := location.Split(album)
		if err != nil || locName != sourceLocation {
			continue
		}
		var size int64
		for trackPath := range trackPaths {
			track := idx.Tracks[trackPath]
			if track == nil {
				continue
			}
			for _, s := range track.FileSizes {
				size += s
			}
		}
		candidates = append(candidates, candidate{album: album, size: size})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].album < candidates[j].album })

	var out []string
	var moved int64
	for _, c := range candidates {
		if moved >= budget {
			break
		}
		out = append(out, c.album)
		moved += c.size
	}
	return out
}

// Execute moves every item in plan: rename if source and target share a
// filesystem, otherwise copy-then-delete. Each file's outcome is recorded
// in plan.State.
func Execute(ctx context.Context, plan *Plan) error {
	for _, item := range plan.Items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := moveOne(item); err != nil {
			plan.State.Fail(item.Hash, err.Error())
			continue
		}
		plan.State.Done(item.Hash)
	}
	return nil
}

func moveOne(item Item) error {
	if err := os.MkdirAll(filepath.Dir(item.TargetAbs), 0o755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	if err := os.Rename(item.SourceAbs, item.TargetAbs); err == nil {
		return nil
	}

	return copyThenDelete(item.SourceAbs, item.TargetAbs)
}

func copyThenDelete(sourceAbs, targetAbs string) error {
	src, err := os.Open(sourceAbs)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(targetAbs)
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(targetAbs)
		return fmt.Errorf("copy: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close target: %w", err)
	}
	if err := os.Remove(sourceAbs); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}
