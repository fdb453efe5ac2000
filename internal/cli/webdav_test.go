package cli

import (
	"strings"
	"testing"
)

func TestWebdavSetupIsOutOfScope(t *testing.T) {
	app, _, errOut := newTestApp(t)
	cmd := newWebdavSetupCommand(app)

	err := cmd.RunE(cmd, nil)
	if err == nil {
		t.Fatalf("expected webdav setup to return an error")
	}
	if !strings.Contains(errOut.String(), "does not provision") {
		t.Fatalf("expected guidance message on stderr, got %q", errOut.String())
	}
}
