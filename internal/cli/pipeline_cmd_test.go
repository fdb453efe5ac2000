package cli

import (
	"context"
	"testing"

	"github.com/jaa/blackbird/internal/transport"
)

func TestRemoteListSourceSkipsDirsAndExhausts(t *testing.T) {
	src := &remoteListSource{entries: []transport.Entry{
		{Name: "a.flac", IsDir: false, Size: 10},
		{Name: "sub", IsDir: true},
		{Name: "b.flac", IsDir: false, Size: 20},
	}}

	ctx := context.Background()
	path, meta, ok, err := src.Next(ctx)
	if err != nil || !ok || path != "a.flac" || meta["size"] != "10" {
		t.Fatalf("unexpected first entry: path=%q meta=%v ok=%v err=%v", path, meta, ok, err)
	}

	path, meta, ok, err = src.Next(ctx)
	if err != nil || !ok || path != "b.flac" || meta["size"] != "20" {
		t.Fatalf("unexpected second entry (dir should be skipped): path=%q meta=%v ok=%v err=%v", path, meta, ok, err)
	}

	_, _, ok, err = src.Next(ctx)
	if err != nil || ok {
		t.Fatalf("expected exhaustion, got ok=%v err=%v", ok, err)
	}
}

func TestPipelineRunCommandRegistersRemoteDirAndCommandFlags(t *testing.T) {
	app, _, _ := newTestApp(t)
	cmd := newPipelineRunCommand(app)

	if err := cmd.Args(cmd, []string{"http://origin/dataset"}); err != nil {
		t.Fatalf("expected a single URL arg to be accepted: %v", err)
	}

	remoteDir := cmd.Flags().Lookup("remote-dir")
	if remoteDir == nil {
		t.Fatalf("expected --remote-dir flag to be registered")
	}
	command := cmd.Flags().Lookup("command")
	if command == nil {
		t.Fatalf("expected --command flag to be registered")
	}
}
