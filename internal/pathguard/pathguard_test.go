package pathguard

import (
	"errors"
	"testing"

	"github.com/ngslab/seqportal/internal/config"
)

func testValidator() *Validator {
	return NewValidator([]config.BasePath{
		{AnalysisType: "wgs", Dir: "/bacteria"},
		{AnalysisType: "species", Dir: "/animalSpecies"},
	}, nil)
}

func TestValidate_InsideBase(t *testing.T) {
	v := testValidator()

	got, err := v.Validate("/bacteria/run1", "wgs")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/bacteria/run1" {
		t.Errorf("unexpected resolved path %q", got)
	}
}

func TestValidate_OutsideBase(t *testing.T) {
	v := testValidator()

	_, err := v.Validate("/etc/passwd", "wgs")
	if !errors.Is(err, ErrOutsideBase) {
		t.Fatalf("expected ErrOutsideBase, got %v", err)
	}
}

func TestValidate_EmptyPath(t *testing.T) {
	v := testValidator()

	for _, atype := range []string{"", "wgs", "species", "unknown"} {
		if _, err := v.Validate("", atype); !errors.Is(err, ErrEmptyPath) {
			t.Errorf("type %q: expected ErrEmptyPath, got %v", atype, err)
		}
	}
}

func TestValidate_TraversalEscape(t *testing.T) {
	v := testValidator()

	_, err := v.Validate("/bacteria/../etc/passwd", "wgs")
	if !errors.Is(err, ErrOutsideBase) {
		t.Fatalf("expected ErrOutsideBase for traversal path, got %v", err)
	}
}

func TestValidate_InfersTypeFromPrefix(t *testing.T) {
	v := testValidator()

	got, err := v.Validate("/animalSpecies/run7", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/animalSpecies/run7" {
		t.Errorf("unexpected resolved path %q", got)
	}
}

func TestValidate_UnknownTypeFallsBackToFirstBase(t *testing.T) {
	v := testValidator()

	if _, err := v.Validate("/bacteria/run1", "nope"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := v.Validate("/animalSpecies/run7", "nope"); !errors.Is(err, ErrOutsideBase) {
		t.Fatalf("fallback base is /bacteria, expected ErrOutsideBase, got %v", err)
	}
}

func TestValidate_HintOverridesPrefix(t *testing.T) {
	v := testValidator()

	// A species-typed request must stay under /animalSpecies even when the
	// path lives under another configured base.
	_, err := v.Validate("/bacteria/run1", "species")
	if !errors.Is(err, ErrOutsideBase) {
		t.Fatalf("expected ErrOutsideBase, got %v", err)
	}
}

func TestInferType(t *testing.T) {
	v := testValidator()

	if got := v.InferType("/animalSpecies/run7"); got != "species" {
		t.Errorf("expected species, got %q", got)
	}
	if got := v.InferType("/somewhere/else"); got != "wgs" {
		t.Errorf("expected fallback wgs, got %q", got)
	}
}

func TestBaseDir(t *testing.T) {
	v := testValidator()

	dir, ok := v.BaseDir("species")
	if !ok || dir != "/animalSpecies" {
		t.Errorf("unexpected base %q ok=%v", dir, ok)
	}
	if _, ok := v.BaseDir("nope"); ok {
		t.Error("expected unknown type to report !ok")
	}
}
