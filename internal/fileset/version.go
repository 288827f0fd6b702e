package fileset

import (
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"tetherd/internal/lines"
)

// Marker tags the line carrying the installed fileset version
const Marker = "@Version"

// ScanDepth is how many leading lines are searched for the marker
const ScanDepth = 4

// Outdated reports whether the fileset described by the version file at path
// must be reinstalled to match expected. A missing file is not outdated since
// there is nothing installed to upgrade. A file without a marker in its first
// ScanDepth lines, or one that cannot be read, is outdated.
func Outdated(path, expected string) bool {
	logger := log.WithFields(log.Fields{
		"path":     path,
		"expected": expected,
	})

	content, err := lines.Read(path)
	if err != nil {
		if errors.Is(err, lines.ErrNotFound) {
			logger.Debug("No fileset installed")
			return false
		}
		logger.WithError(err).Warn("Unable to read fileset version")
		return true
	}

	installed, found := Installed(content)
	if !found {
		logger.Info("Fileset version marker not found")
		return true
	}

	logger = logger.WithField("installed", installed)
	if installed != strings.TrimSpace(expected) {
		logger.Info("Fileset outdated")
		return true
	}
	logger.Debug("Fileset up to date")
	return false
}

// Installed extracts the version from the first marker line within
// ScanDepth lines. The version is the text after the first '=', trimmed.
func Installed(content []string) (string, bool) {
	for i, line := range content {
		if i >= ScanDepth {
			break
		}
		if !strings.Contains(line, Marker) {
			continue
		}
		_, version, found := strings.Cut(line, "=")
		if !found {
			return "", false
		}
		return strings.TrimSpace(version), true
	}
	return "", false
}
