package doctor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jaa/blackbird/internal/dataset"
)

func openFixtureDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	root := t.TempDir()
	ds, err := dataset.Open(root)
	require.NoError(t, err)

	require.NoError(t, ds.Schema.AddComponent("instrumental", "*_instrumental.mp3", false, ""))
	require.NoError(t, ds.SaveSchema())

	trackFile := filepath.Join(root, "Artist_A", "Album1", "Alpha_instrumental.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(trackFile), 0o755))
	require.NoError(t, os.WriteFile(trackFile, []byte("1234"), 0o644))

	require.NoError(t, ds.Reindex(time.Unix(0, 0)))
	return ds
}

func TestCheckReportsNoErrorsOnHealthyDataset(t *testing.T) {
	ds := openFixtureDataset(t)
	checker := NewChecker()

	report := checker.Check(context.Background(), ds)
	require.False(t, report.HasErrors())
	require.Equal(t, 0, report.ErrorCount())
}

func TestCheckFlagsUnwritableLocation(t *testing.T) {
	ds := openFixtureDataset(t)
	checker := &Checker{CheckWritable: func(path string) error {
		return os.ErrPermission
	}}

	report := checker.Check(context.Background(), ds)
	require.True(t, report.HasErrors())
}

func TestReportErrorCount(t *testing.T) {
	report := Report{Checks: []Check{
		{Severity: SeverityError, Name: "a"},
		{Severity: SeverityWarn, Name: "b"},
		{Severity: SeverityError, Name: "c"},
	}}
	require.Equal(t, 2, report.ErrorCount())
	require.True(t, report.HasErrors())
}
