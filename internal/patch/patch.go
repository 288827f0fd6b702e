package patch

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"tetherd/internal/lines"
)

// Apply runs rule over content and reports whether any line changed.
// content is not modified.
func Apply(content []string, rule Rule) ([]string, bool) {
	rewrite := rule.rewriter()
	out := make([]string, len(content))
	changed := false

	for i, line := range content {
		out[i] = rewrite(line)
		if out[i] != line {
			changed = true
		}
	}
	return out, changed
}

// File applies rule to the file at path. The file is rewritten only when a
// line actually changed, so a no-op patch leaves it untouched.
func File(path string, rule Rule) (bool, error) {
	content, err := lines.Read(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	out, changed := Apply(content, rule)
	logger := log.WithFields(log.Fields{
		"path": path,
		"rule": rule.Kind().String(),
	})
	if !changed {
		logger.Debug("Config already up to date")
		return false, nil
	}

	if err := lines.Write(path, out); err != nil {
		return false, err
	}
	logger.Info("Updated config")
	return true, nil
}
