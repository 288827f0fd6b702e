package lines

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned by Read when the file does not exist
var ErrNotFound = errors.New("file not found")

// Read returns every line of the file with trailing whitespace removed.
// A missing file yields an error wrapping both ErrNotFound and fs.ErrNotExist,
// an empty file yields an empty slice and no error.
func Read(path string) ([]string, error) {
	log.WithField("path", path).Debug("Reading lines from file")

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	result := make([]string, 0)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 8192), 1024*1024)
	for scanner.Scan() {
		result = append(result, strings.TrimRightFunc(scanner.Text(), unicode.IsSpace))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return result, nil
}

// ReadTolerant reads like Read but reports every failure as "no lines".
// Callers that cannot tell a missing file from an empty one use this.
func ReadTolerant(path string) []string {
	result, err := Read(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Debug("Treating unreadable file as empty")
		return []string{}
	}
	return result
}

// Write truncates the file and writes each line followed by a newline
func Write(path string, content []string) error {
	var b strings.Builder
	for _, line := range content {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	log.WithFields(log.Fields{
		"path":  path,
		"bytes": b.Len(),
	}).Debug("Writing lines to file")

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s for writing: %w", path, err)
	}
	if _, err := file.WriteString(b.String()); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path exists and can be opened for reading
func Exists(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	file.Close()
	return true
}
