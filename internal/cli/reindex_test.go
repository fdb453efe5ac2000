package cli

import (
	"strings"
	"testing"

	"github.com/jaa/blackbird/internal/dataset"
)

func TestReindexCommandWalksLocations(t *testing.T) {
	app, out, _ := newTestApp(t)
	locRoot := addTestLocation(t, app, "main")

	ds, err := dataset.Open(app.Opts.DatasetRoot)
	if err != nil {
		t.Fatalf("open dataset: %v", err)
	}
	if err := ds.Schema.AddComponent("audio", "*.flac", false, ""); err != nil {
		t.Fatalf("add component: %v", err)
	}
	if err := ds.SaveSchema(); err != nil {
		t.Fatalf("save schema: %v", err)
	}
	writeTrackFile(t, locRoot, "Artist", "Album", "01 - Song.flac", "data")

	cmd := newReindexCommand(app)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	if !strings.Contains(out.String(), "1 track(s)") {
		t.Fatalf("expected 1 track(s) in output, got %q", out.String())
	}
}
