package fastq

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ngslab/seqportal/pkg/models"
)

// MaxRecursiveDepth bounds recursive descent so symlink cycles or
// pathological trees cannot run the scan away. Branches deeper than this are
// skipped without failing the whole scan.
const MaxRecursiveDepth = 5

// Scanner enumerates read files under a folder and parses them into
// deduplicated sample records.
type Scanner struct {
	log *slog.Logger
}

// NewScanner creates a Scanner. A nil logger falls back to slog.Default.
func NewScanner(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{log: log}
}

// Scan returns the unique samples found in dir, in first-seen traversal
// order. With recursive set it also descends into subdirectories, skipping
// dot-directories and capping depth at MaxRecursiveDepth. Directory access
// errors degrade to an empty branch rather than aborting.
func (s *Scanner) Scan(dir string, recursive bool) []models.Sample {
	var files []string
	if recursive {
		files = s.findReadFiles(dir, 0)
	} else {
		files = s.listReadFiles(dir)
	}
	s.log.Info("scanned folder for read files", "dir", dir, "recursive", recursive, "files", len(files))

	var samples []models.Sample
	seen := make(map[string]bool)
	for _, f := range files {
		sample, ok := Parse(f)
		if !ok {
			s.log.Debug("filename matched no grammar", "file", filepath.Base(f))
			continue
		}
		key := sample.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		samples = append(samples, sample)
	}
	return samples
}

// listReadFiles returns eligible files directly inside dir.
func (s *Scanner) listReadFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Error("cannot read folder", "dir", dir, "error", err)
		return nil
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !isReadFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files
}

// findReadFiles walks dir and its descendants up to MaxRecursiveDepth.
func (s *Scanner) findReadFiles(dir string, depth int) []string {
	if depth > MaxRecursiveDepth {
		s.log.Warn("maximum recursion depth reached", "dir", dir)
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.log.Error("cannot read folder", "dir", dir, "error", err)
		return nil
	}

	var files []string
	for _, entry := range entries {
		switch {
		case entry.IsDir():
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			files = append(files, s.findReadFiles(filepath.Join(dir, entry.Name()), depth+1)...)
		case isReadFile(entry.Name()):
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files
}

// isReadFile reports whether name carries one of the accepted raw-read
// suffixes and is not a demultiplexing leftover.
func isReadFile(name string) bool {
	if strings.HasPrefix(name, UndeterminedPrefix) {
		return false
	}
	return strings.HasSuffix(name, ".fastq") || strings.HasSuffix(name, ".fastq.gz")
}
