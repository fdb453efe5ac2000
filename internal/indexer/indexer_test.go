package indexer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaa/blackbird/internal/location"
	"github.com/jaa/blackbird/internal/schema"
)

func writeFile(t *testing.T, root string, rel string, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func buildFixtureSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.New()
	require.NoError(t, s.AddComponent("instrumental_audio", "*_instrumental.mp3", false, ""))
	require.NoError(t, s.AddComponent("vocals_audio", "*_vocals.mp3", false, ""))
	return s
}

func TestBuildWalksLocationsAndMatchesFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Artist_A/Album1/Alpha_instrumental.mp3", "1234")
	writeFile(t, root, "Artist_A/Album1/Alpha_vocals.mp3", "12345")
	writeFile(t, root, "Artist_B/AlbumX/CD1/Beta_instrumental.mp3", "123")
	writeFile(t, root, "Artist_A/Album1/readme.txt", "not a component")
	writeFile(t, root, "loose_file.mp3", "ignored, no artist/album segments")

	reg, err := location.Load(root)
	require.NoError(t, err)

	s := buildFixtureSchema(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	idx, err := Build(reg, s, now)
	require.NoError(t, err)

	require.Equal(t, 3, idx.TotalFiles)
	require.Equal(t, now, idx.LastUpdated)

	track, ok := idx.Tracks["Main/Artist_A/Album1/Alpha"]
	require.True(t, ok)
	require.Equal(t, []string{"Main/Artist_A/Album1/Alpha_instrumental.mp3"}, track.Files["instrumental_audio"])
	require.Equal(t, []string{"Main/Artist_A/Album1/Alpha_vocals.mp3"}, track.Files["vocals_audio"])

	cdTrack, ok := idx.Tracks["Main/Artist_B/AlbumX/CD1/Beta"]
	require.True(t, ok)
	require.Equal(t, "CD1", cdTrack.CDNumber)
}

func TestBuildSkipsBlackbirdDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Artist_A/Album1/Alpha_instrumental.mp3", "1234")
	writeFile(t, root, ".blackbird/schema.json", `{"version":"1","components":{}}`)

	reg, err := location.Load(root)
	require.NoError(t, err)
	s := buildFixtureSchema(t)

	idx, err := Build(reg, s, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, idx.TotalFiles)
}

func TestEnsureDirCreatesBlackbirdSubdir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, EnsureDir(root))
	info, err := os.Stat(filepath.Join(root, ".blackbird"))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
