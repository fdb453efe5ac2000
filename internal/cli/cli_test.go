package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jaa/blackbird/internal/dataset"
)

// newTestApp builds an AppContext with buffered IO and a --dataset flag
// pointed at a fresh temp directory. The dataset is bootstrapped (registry
// holding only Main, empty schema) so commands can open it immediately.
func newTestApp(t *testing.T) (*AppContext, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()

	var out, errOut bytes.Buffer
	app := &AppContext{
		IO: IOStreams{In: os.Stdin, Out: &out, ErrOut: &errOut},
	}
	app.Opts.DatasetRoot = root
	app.Opts.NoInput = true

	ds, err := dataset.Open(root)
	if err != nil {
		t.Fatalf("bootstrap dataset: %v", err)
	}
	if err := ds.SaveRegistry(); err != nil {
		t.Fatalf("save registry: %v", err)
	}
	if err := ds.SaveSchema(); err != nil {
		t.Fatalf("save schema: %v", err)
	}
	return app, &out, &errOut
}

// addTestLocation registers a location backed by a real temp directory
// and returns its absolute path.
func addTestLocation(t *testing.T, app *AppContext, name string) string {
	t.Helper()
	root := t.TempDir()
	ds, err := dataset.Open(app.Opts.DatasetRoot)
	if err != nil {
		t.Fatalf("open dataset: %v", err)
	}
	if err := ds.AddLocation(name, root); err != nil {
		t.Fatalf("add location: %v", err)
	}
	return root
}

func writeTrackFile(t *testing.T, locRoot, artist, album, name, contents string) {
	t.Helper()
	dir := filepath.Join(locRoot, artist, album)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}
