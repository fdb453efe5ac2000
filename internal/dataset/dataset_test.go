package dataset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaa/blackbird/internal/location"
)

func TestOpenSynthesizesMainLocation(t *testing.T) {
	root := t.TempDir()
	ds, err := Open(root)
	require.NoError(t, err)
	require.Contains(t, ds.Registry.Names(), location.Main)
	require.Equal(t, 0, ds.Index.TotalFiles)
}

func TestReindexPicksUpNewFiles(t *testing.T) {
	root := t.TempDir()
	ds, err := Open(root)
	require.NoError(t, err)

	require.NoError(t, ds.Schema.AddComponent("instrumental", "*_instrumental.mp3", false, ""))
	require.NoError(t, ds.SaveSchema())

	trackFile := filepath.Join(root, "Artist_A", "Album1", "Alpha_instrumental.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(trackFile), 0o755))
	require.NoError(t, os.WriteFile(trackFile, []byte("1234"), 0o644))

	require.NoError(t, ds.Reindex(time.Unix(0, 0)))
	require.Equal(t, 1, ds.Index.TotalFiles)

	reopened, err := Open(root)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Index.TotalFiles)
}

func TestRemoveLocationRefusesWhenInUse(t *testing.T) {
	root := t.TempDir()
	ds, err := Open(root)
	require.NoError(t, err)

	coldRoot := t.TempDir()
	require.NoError(t, ds.AddLocation("Cold", coldRoot))

	require.NoError(t, ds.Schema.AddComponent("instrumental", "*_instrumental.mp3", false, ""))
	require.NoError(t, ds.SaveSchema())

	trackFile := filepath.Join(coldRoot, "Artist_A", "Album1", "Alpha_instrumental.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(trackFile), 0o755))
	require.NoError(t, os.WriteFile(trackFile, []byte("1234"), 0o644))
	require.NoError(t, ds.Reindex(time.Unix(0, 0)))

	err = ds.RemoveLocation("Cold", false)
	require.Error(t, err)

	require.NoError(t, ds.RemoveLocation("Cold", true))
}
