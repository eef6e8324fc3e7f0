// Package pathguard confines user-supplied paths to the base directories
// configured per analysis type.
package pathguard

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ngslab/seqportal/internal/config"
)

// Sentinel errors for path validation failures.
var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrOutsideBase = errors.New("path is outside the permitted area")
)

// Validator checks that paths stay under the base directory bound to an
// analysis type. The check is a prefix test on the resolved absolute path,
// not a symlink-safe containment check; callers must not treat it as a
// sandbox against symlink escapes.
type Validator struct {
	basePaths []config.BasePath
	log       *slog.Logger
}

// NewValidator creates a Validator over the ordered type/base pairs from the
// config. A nil logger falls back to slog.Default.
func NewValidator(basePaths []config.BasePath, log *slog.Logger) *Validator {
	if log == nil {
		log = slog.Default()
	}
	return &Validator{basePaths: basePaths, log: log}
}

// Validate resolves path to an absolute path and confirms it lies within the
// base directory for analysisType. An empty type hint (or an unrecognized
// one) infers the type from the path prefix, falling back to the first
// configured base.
func (v *Validator) Validate(path, analysisType string) (string, error) {
	if path == "" {
		v.log.Warn("empty path provided for validation")
		return "", ErrEmptyPath
	}

	base := v.baseFor(path, analysisType)

	resolved, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	baseResolved, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(resolved, baseResolved) {
		v.log.Warn("path validation failed", "path", resolved, "base", baseResolved)
		return "", ErrOutsideBase
	}

	return resolved, nil
}

// BaseDir returns the base directory bound to analysisType, or false when
// the type is unknown.
func (v *Validator) BaseDir(analysisType string) (string, bool) {
	for _, bp := range v.basePaths {
		if bp.AnalysisType == analysisType {
			return bp.Dir, true
		}
	}
	return "", false
}

// InferType returns the analysis type whose base directory prefixes path,
// falling back to the first configured type.
func (v *Validator) InferType(path string) string {
	for _, bp := range v.basePaths {
		if strings.HasPrefix(path, bp.Dir) {
			return bp.AnalysisType
		}
	}
	return v.basePaths[0].AnalysisType
}

func (v *Validator) baseFor(path, analysisType string) string {
	if dir, ok := v.BaseDir(analysisType); ok {
		return dir
	}
	for _, bp := range v.basePaths {
		if strings.HasPrefix(path, bp.Dir) {
			return bp.Dir
		}
	}
	return v.basePaths[0].Dir
}
