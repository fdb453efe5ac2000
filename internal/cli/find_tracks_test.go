package cli

import (
	"strings"
	"testing"
)

func TestFindTracksCommandFiltersByArtist(t *testing.T) {
	app, out := setupOneTrackDataset(t)

	cmd := newFindTracksCommand(app)
	if err := cmd.Flags().Set("artist", "Artist"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("find-tracks: %v", err)
	}

	if !strings.Contains(out.String(), "Artist/Album") {
		t.Fatalf("expected a matching track, got %q", out.String())
	}
}

func TestFindTracksCommandHasFilterExcludesMissing(t *testing.T) {
	app, out := setupOneTrackDataset(t)

	cmd := newFindTracksCommand(app)
	if err := cmd.Flags().Set("has", "art"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("find-tracks --has: %v", err)
	}

	if strings.TrimSpace(out.String()) != "" {
		t.Fatalf("expected no tracks to have the art component, got %q", out.String())
	}
}
