package mover

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaa/blackbird/internal/index"
	"github.com/jaa/blackbird/internal/location"
)

func setupDataset(t *testing.T) (*index.Index, *location.Registry, string, string) {
	t.Helper()
	mainRoot := t.TempDir()
	coldRoot := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(mainRoot, ".blackbird"), 0o755))
	reg, err := location.Load(mainRoot)
	require.NoError(t, err)
	require.NoError(t, reg.Add("Cold", coldRoot))

	trackFile := filepath.Join(mainRoot, "Artist_A", "Album1", "Alpha_instrumental.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(trackFile), 0o755))
	require.NoError(t, os.WriteFile(trackFile, []byte("1234"), 0o644))

	idx := index.New()
	require.NoError(t, idx.AddFile("Main/Artist_A/Album1/Alpha_instrumental.mp3", 4, "instrumental", false, "Artist_A", "Album1", "", "Alpha"))
	idx.Finalize()

	return idx, reg, mainRoot, coldRoot
}

func TestBuildPlanByFolderSelection(t *testing.T) {
	idx, reg, mainRoot, _ := setupDataset(t)

	plan, err := BuildPlan(idx, reg, location.Main, "Cold", Selection{Folders: []string{"Main/Artist_A/Album1"}}, mainRoot, time.Unix(0, 0))
	require.NoError(t, err)
	require.NoError(t, plan.State.Close())

	require.Len(t, plan.Items, 1)
	require.Equal(t, "Main/Artist_A/Album1/Alpha_instrumental.mp3", plan.Items[0].SourceSymbolic)
	require.Equal(t, "Cold/Artist_A/Album1/Alpha_instrumental.mp3", plan.Items[0].TargetSymbolic)
}

func TestExecuteMovesFileAndMarksDone(t *testing.T) {
	idx, reg, mainRoot, coldRoot := setupDataset(t)

	plan, err := BuildPlan(idx, reg, location.Main, "Cold", Selection{Folders: []string{"Main/Artist_A/Album1"}}, mainRoot, time.Unix(0, 0))
	require.NoError(t, err)

	require.NoError(t, Execute(context.Background(), plan))
	require.NoError(t, plan.State.Close())

	_, err = os.Stat(filepath.Join(mainRoot, "Artist_A", "Album1", "Alpha_instrumental.mp3"))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(coldRoot, "Artist_A", "Album1", "Alpha_instrumental.mp3"))
	require.NoError(t, err)

	snap := plan.State.Snapshot()
	for _, status := range snap.Files {
		require.Equal(t, "done", status)
	}
}

func TestBuildPlanBySizeBudgetNeverSplitsAlbum(t *testing.T) {
	idx, reg, mainRoot, _ := setupDataset(t)

	plan, err := BuildPlan(idx, reg, location.Main, "Cold", Selection{SizeBudget: 1}, mainRoot, time.Unix(0, 0))
	require.NoError(t, err)
	require.NoError(t, plan.State.Close())

	require.Len(t, plan.Items, 1)
}
