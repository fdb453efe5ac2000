package cli

import (
	"strings"
	"testing"

	"github.com/jaa/blackbird/internal/dataset"
	"github.com/jaa/blackbird/internal/exitcode"
)

func TestDoctorCommandReportsNoErrorsOnFreshDataset(t *testing.T) {
	app, out, _ := newTestApp(t)

	cmd := newDoctorCommand(app)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if !strings.Contains(out.String(), "[") {
		t.Fatalf("expected at least one check printed, got %q", out.String())
	}
}

func TestDoctorCommandFailsWithStateErrorOnBadIndex(t *testing.T) {
	app, _, _ := newTestApp(t)

	ds, err := dataset.Open(app.Opts.DatasetRoot)
	if err != nil {
		t.Fatalf("open dataset: %v", err)
	}
	// A track referencing a location that was never registered trips
	// checkTrackLocations, per spec §3.2 invariant 1.
	if err := ds.Index.AddFile("Ghost/Artist/Album/01 - Song.flac", 10, "audio", false, "Artist", "Album", "", "01 - Song"); err != nil {
		t.Fatalf("add file: %v", err)
	}
	if err := ds.Index.Save(app.Opts.DatasetRoot); err != nil {
		t.Fatalf("save index: %v", err)
	}

	cmd := newDoctorCommand(app)
	err = cmd.RunE(cmd, nil)
	if err == nil {
		t.Fatalf("expected doctor to report an error for the unknown location")
	}
	exitErr, ok := err.(*ExitError)
	if !ok || exitErr.Code != exitcode.StateError {
		t.Fatalf("expected a StateError ExitError, got %#v", err)
	}
}
