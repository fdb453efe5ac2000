package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jaa/blackbird/internal/config"
	"github.com/jaa/blackbird/internal/dataset"
)

func loadConfig(app *AppContext) (config.Config, error) {
	wd, err := datasetRoot(app)
	if err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(config.LoadOptions{
		ExplicitPath: strings.TrimSpace(app.Opts.ConfigPath),
		WorkingDir:   wd,
	})
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// datasetRoot resolves the dataset root: --dataset if set, else the
// current working directory.
func datasetRoot(app *AppContext) (string, error) {
	if root := strings.TrimSpace(app.Opts.DatasetRoot); root != "" {
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return wd, nil
}

func openDataset(app *AppContext) (*dataset.Dataset, error) {
	root, err := datasetRoot(app)
	if err != nil {
		return nil, err
	}
	return dataset.Open(root)
}

func isTTY(file *os.File) bool {
	stat, err := file.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
