// Package logtail serves the portal's own log files to administrators.
package logtail

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnknownLog is returned for log names outside the whitelist.
var ErrUnknownLog = errors.New("unknown log name")

// MaxLines is the number of trailing lines served per log.
const MaxLines = 1000

// logFiles maps the exposed log names to their filenames. Only names listed
// here can ever be read, regardless of what the request asks for.
var logFiles = map[string]string{
	"portal": "portal.log",
	"access": "access.log",
	"error":  "error.log",
}

// Tailer reads the trailing lines of whitelisted portal log files.
type Tailer struct {
	dir string
	log *slog.Logger
}

func NewTailer(dir string, log *slog.Logger) *Tailer {
	if log == nil {
		log = slog.Default()
	}
	return &Tailer{dir: dir, log: log}
}

// Names returns the available log names.
func (t *Tailer) Names() []string {
	names := make([]string, 0, len(logFiles))
	for name := range logFiles {
		names = append(names, name)
	}
	return names
}

// Tail returns the last MaxLines lines of the named log. An unknown name is
// an error; a whitelisted log that does not exist yet degrades to a notice
// so the admin page still renders.
func (t *Tailer) Tail(name string) (string, error) {
	filename, ok := logFiles[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownLog, name)
	}

	path := filepath.Join(t.dir, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("[INFO] log file %s does not exist yet", filename), nil
		}
		t.log.Error("failed to read log file", "path", path, "error", err)
		return "", err
	}

	return lastLines(string(data), MaxLines), nil
}

// lastLines returns the trailing n lines of content, preserving the original
// line endings in between.
func lastLines(content string, n int) string {
	content = strings.TrimRight(content, "\n")
	if content == "" {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
