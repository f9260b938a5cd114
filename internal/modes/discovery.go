package modes

import (
	"embed"
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

//go:embed defaults/*.yaml
var defaultManifests embed.FS

// Discover parses every *.yaml file at the root of fsys. Invalid manifests
// are logged and skipped so one bad file does not hide the rest.
func Discover(fsys fs.FS, logger *slog.Logger) ([]*Mode, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	var found []*Mode
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		f, err := fsys.Open(entry.Name())
		if err != nil {
			logger.Warn("failed to open mode manifest", "file", entry.Name(), "error", err)
			continue
		}
		m, err := ParseManifest(f)
		f.Close()
		if err != nil {
			logger.Warn("skipping invalid mode manifest", "file", entry.Name(), "error", err)
			continue
		}
		found = append(found, m)
	}
	return found, nil
}

func builtins(logger *slog.Logger) ([]*Mode, error) {
	sub, err := fs.Sub(defaultManifests, path.Clean("defaults"))
	if err != nil {
		return nil, err
	}
	return Discover(sub, logger)
}
