package cli

import (
	"io"

	"github.com/sirupsen/logrus"
)

type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

type GlobalOptions struct {
	DatasetRoot string
	ConfigPath  string
	JSON        bool
	Quiet       bool
	Verbose     bool
	NoColor     bool
	NoInput     bool
	DryRun      bool
}

type AppContext struct {
	Build  BuildInfo
	IO     IOStreams
	Opts   GlobalOptions
	Logger *logrus.Logger
}

// logger returns app's diagnostic logger, falling back to a default one
// (info level, text format) for call sites reached before
// PersistentPreRunE has run, e.g. in tests that construct commands
// directly.
func (app *AppContext) logger() *logrus.Logger {
	if app.Logger != nil {
		return app.Logger
	}
	logger := logrus.New()
	logger.SetOutput(app.IO.ErrOut)
	return logger
}
