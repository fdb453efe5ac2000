// Package index implements the Index (spec §4.3): an in-memory,
// disk-persisted catalog of tracks and component files keyed by symbolic
// path, with search, stats and hash lookup.
package index

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jaa/blackbird/internal/fsutil"
	"github.com/jaa/blackbird/internal/location"
)

const fileName = "index.bin"

// magic identifies a blackbird binary index. formatVersion is bumped any
// time the on-disk envelope's shape changes incompatibly.
var magic = [4]byte{'B', 'B', 'I', 'X'}

const formatVersion uint32 = 1

var ErrCorruptIndex = errors.New("index: corrupt or unrecognized binary index")

// Hash is the pinned 64-bit non-cryptographic hash used for
// file_info_by_hash keys on both ends of a sync (Open Question 2).
func Hash(symbolicPath string) uint64 {
	return xxhash.Sum64String(symbolicPath)
}

// Track is a logical unit identified by artist/album[/CD]/base-name: a bag
// of component files.
type Track struct {
	TrackPath string              // symbolic track path, e.g. "Main/Artist/Album/CD1/Base"
	Artist    string
	AlbumPath string              // plain album name; see AlbumSymbolicPath for the full symbolic form
	CDNumber  string              // optional, e.g. "CD1"
	BaseName  string
	Files     map[string][]string // component name -> symbolic file path(s)
	FileSizes map[string]int64    // symbolic file path -> size in bytes
}

func newTrack(trackPath, artist, albumPath, cd, base string) *Track {
	return &Track{
		TrackPath: trackPath,
		Artist:    artist,
		AlbumPath: albumPath,
		CDNumber:  cd,
		BaseName:  base,
		Files:     map[string][]string{},
		FileSizes: map[string]int64{},
	}
}

// FileInfo pairs a symbolic file path with its recorded size.
type FileInfo struct {
	Path string
	Size int64
}

// LocationStats aggregates per-location counters.
type LocationStats struct {
	Files   int
	Size    int64
	Tracks  int
	Albums  int
	Artists int
}

// Index is the in-memory catalog. Only LastUpdated, Version and Tracks are
// persisted; every other field is derived by Finalize so the on-disk
// format never drifts out of sync with the invariants in spec §3.2.
type Index struct {
	LastUpdated time.Time
	Version     int
	Tracks      map[string]*Track

	TrackByAlbum    map[string]map[string]struct{}
	AlbumByArtist   map[string]map[string]struct{}
	TotalSize       int64
	TotalFiles      int
	StatsByLocation map[string]*LocationStats
	FileInfoByHash  map[uint64]FileInfo
}

// New returns an empty index ready to be populated via AddFile.
func New() *Index {
	return &Index{
		Version: 1,
		Tracks:  map[string]*Track{},
	}
}

// AddFile records one component file against its track, creating the
// track if this is its first observed file. componentMultiple controls
// whether duplicate entries for the same component are appended (true) or
// replace the existing single entry (false), per invariant 4. album and
// artist are plain names (no slashes); cdNumber is "" when the dataset has
// no CD subdirectory for this track.
func (idx *Index) AddFile(symbolicFilePath string, size int64, component string, componentMultiple bool, artist, album, cdNumber, baseName string) error {
	locName, _, err := location.Split(symbolicFilePath)
	if err != nil {
		return err
	}
	trackPath := trackPathFor(locName, artist, album, cdNumber, baseName)

	t, ok := idx.Tracks[trackPath]
	if !ok {
		t = newTrack(trackPath, artist, album, cdNumber, baseName)
		idx.Tracks[trackPath] = t
	}

	if componentMultiple {
		t.Files[component] = append(t.Files[component], symbolicFilePath)
	} else {
		t.Files[component] = []string{symbolicFilePath}
	}
	t.FileSizes[symbolicFilePath] = size
	return nil
}

func trackPathFor(locName, artist, album, cdNumber, baseName string) string {
	segments := []string{artist, album}
	if cdNumber != "" {
		segments = append(segments, cdNumber)
	}
	segments = append(segments, baseName)
	return locName + "/" + strings.Join(segments, "/")
}

// AlbumSymbolicPath returns the symbolic album path (location/artist/album,
// without CD or base name) for a track.
func (t *Track) AlbumSymbolicPath(locName string) string {
	return locName + "/" + t.Artist + "/" + t.AlbumPath
}

// Finalize recomputes every derived field from Tracks. It must be called
// after a batch of AddFile calls and before the index is queried,
// persisted, or handed to a caller — this is also what load() does after
// decoding the on-disk Tracks map.
func (idx *Index) Finalize() {
	idx.TrackByAlbum = map[string]map[string]struct{}{}
	idx.AlbumByArtist = map[string]map[string]struct{}{}
	idx.StatsByLocation = map[string]*LocationStats{}
	idx.FileInfoByHash = map[uint64]FileInfo{}
	idx.TotalFiles = 0
	idx.TotalSize = 0

	seenArtistInLocation := map[string]map[string]bool{}
	seenAlbumInLocation := map[string]map[string]bool{}

	for trackPath, t := range idx.Tracks {
		locName, _, err := location.Split(trackPath)
		if err != nil {
			continue
		}
		stats := idx.StatsByLocation[locName]
		if stats == nil {
			stats = &LocationStats{}
			idx.StatsByLocation[locName] = stats
		}

		albumSymbolic := t.AlbumSymbolicPath(locName)
		if idx.TrackByAlbum[albumSymbolic] == nil {
			idx.TrackByAlbum[albumSymbolic] = map[string]struct{}{}
		}
		idx.TrackByAlbum[albumSymbolic][trackPath] = struct{}{}

		if idx.AlbumByArtist[t.Artist] == nil {
			idx.AlbumByArtist[t.Artist] = map[string]struct{}{}
		}
		idx.AlbumByArtist[t.Artist][albumSymbolic] = struct{}{}

		stats.Tracks++
		if seenAlbumInLocation[locName] == nil {
			seenAlbumInLocation[locName] = map[string]bool{}
		}
		if !seenAlbumInLocation[locName][albumSymbolic] {
			seenAlbumInLocation[locName][albumSymbolic] = true
			stats.Albums++
		}
		if seenArtistInLocation[locName] == nil {
			seenArtistInLocation[locName] = map[string]bool{}
		}
		if !seenArtistInLocation[locName][t.Artist] {
			seenArtistInLocation[locName][t.Artist] = true
			stats.Artists++
		}

		for _, paths := range t.Files {
			for _, p := range paths {
				size := t.FileSizes[p]
				stats.Files++
				stats.Size += size
				idx.TotalFiles++
				idx.TotalSize += size
				idx.FileInfoByHash[Hash(p)] = FileInfo{Path: p, Size: size}
			}
		}
	}
}

// Touch stamps LastUpdated with the supplied time (injected by callers so
// tests stay deterministic without reaching for time.Now directly).
func (idx *Index) Touch(now time.Time) {
	idx.LastUpdated = now
}

// onDiskIndex is the persisted envelope: only the ground truth (Tracks)
// crosses the wire/disk boundary, everything else is recomputed by
// Finalize on load.
type onDiskIndex struct {
	LastUpdated time.Time
	Version     int
	Tracks      map[string]*Track
}

func path(root string) string {
	return root + "/.blackbird/" + fileName
}

// Save persists the index to root/.blackbird/index.bin.
func (idx *Index) Save(root string) error {
	payload, err := idx.Encode()
	if err != nil {
		return err
	}
	return fsutil.AtomicWriteBytes(path(root), payload, 0o644)
}

// Encode serializes the index to the versioned binary envelope, also used
// by Transport.FetchIndex's counterpart on the serving side.
func (idx *Index) Encode() ([]byte, error) {
	var body bytes.Buffer
	enc := gob.NewEncoder(&body)
	if err := enc.Encode(onDiskIndex{LastUpdated: idx.LastUpdated, Version: idx.Version, Tracks: idx.Tracks}); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}

	var out bytes.Buffer
	out.Write(magic[:])
	var versionBuf [4]byte
	binary.BigEndian.PutUint32(versionBuf[:], formatVersion)
	out.Write(versionBuf[:])
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// Load reads and Finalizes the index at root/.blackbird/index.bin. A
// missing file yields an empty, already-finalized index.
func Load(root string) (*Index, error) {
	payload, err := os.ReadFile(path(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			idx := New()
			idx.Finalize()
			return idx, nil
		}
		return nil, fmt.Errorf("read %s: %w", path(root), err)
	}
	return Decode(payload)
}

// Decode parses the versioned binary envelope from bytes, e.g. as fetched
// over the wire by Transport.FetchIndex, and finalizes it.
func Decode(payload []byte) (*Index, error) {
	if len(payload) < 8 || !bytes.Equal(payload[:4], magic[:]) {
		return nil, ErrCorruptIndex
	}
	version := binary.BigEndian.Uint32(payload[4:8])
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptIndex, version)
	}

	var on onDiskIndex
	dec := gob.NewDecoder(bytes.NewReader(payload[8:]))
	if err := dec.Decode(&on); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: truncated", ErrCorruptIndex)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	idx := &Index{LastUpdated: on.LastUpdated, Version: on.Version, Tracks: on.Tracks}
	if idx.Tracks == nil {
		idx.Tracks = map[string]*Track{}
	}
	idx.Finalize()
	return idx, nil
}

// SortedArtists returns every artist name across the index, sorted
// lexicographically — the ordering the Synchronizer's --proportion
// slicing relies on (Open Question 4).
func (idx *Index) SortedArtists() []string {
	names := make([]string, 0, len(idx.AlbumByArtist))
	for name := range idx.AlbumByArtist {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
