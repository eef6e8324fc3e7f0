// Package fastq turns raw sequencer read files into normalized sample
// records. It understands the two naming conventions the lab's instruments
// produce plus the control-sample variant, and nothing else: files that match
// no grammar are skipped, not errors.
package fastq

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ngslab/seqportal/pkg/models"
)

// UndeterminedPrefix marks demultiplexing leftovers; such files never become
// samples even when the rest of the name would match a grammar.
const UndeterminedPrefix = "Undetermined_"

// Grammars compiled once at package init. Matching is anchored to the
// filename suffix: paired-read markers and the .gz extension are part of the
// grammar, not stripped separately.
var (
	reIonTorrent = regexp.MustCompile(
		`(?i)\.R_(\d{4}_\d{2}_\d{2})_\d{2}_\d{2}_\d{2}_user_.*?-([LHVUR]|TA|NTC|PTC)_(\d{8})\.IonXpress_(\d{3})\.fastq(?:\.gz)?$`)
	reIllumina = regexp.MustCompile(
		`(?i)([LHVUR])-([A-Za-z0-9\-]+)_S\d+_L\d{3}_R[12]_001\.fastq(?:\.gz)?$`)
	reIlluminaControl = regexp.MustCompile(
		`(?i)(NTC|PTC)_S\d+_L\d{3}_R[12]_001\.fastq(?:\.gz)?$`)
)

var sourceByCode = map[string]string{
	"L":   models.SourceFood,
	"H":   models.SourceHuman,
	"V":   models.SourceVeterinary,
	"U":   models.SourceEnvironment,
	"R":   models.SourceReference,
	"TA":  models.SourceSpeciesTyping,
	"NTC": models.SourceNegativeControl,
	"PTC": models.SourcePositiveControl,
}

// Parse attempts to map a single read file to a sample record. The returned
// bool reports whether any grammar matched. path may be relative or
// absolute; only the basename is matched, the directory is recorded on the
// record.
func Parse(path string) (models.Sample, bool) {
	name := filepath.Base(path)
	dir := filepath.Dir(path)

	if strings.HasPrefix(name, UndeterminedPrefix) {
		return models.Sample{}, false
	}

	if m := reIonTorrent.FindStringSubmatch(name); m != nil {
		runDate := strings.ReplaceAll(m[1], "_", "-")
		code := strings.ToUpper(m[2])
		rawDate := m[3]
		index := m[4]
		return models.Sample{
			Source:        sourceByCode[code],
			SampleNumber:  fmt.Sprintf("%s_S%s", formatSampleDate(rawDate), index),
			Directory:     dir,
			RunDate:       runDate,
			RawSampleDate: rawDate,
		}, true
	}

	if m := reIllumina.FindStringSubmatch(name); m != nil {
		code := strings.ToUpper(m[1])
		return models.Sample{
			Source:       sourceByCode[code],
			SampleNumber: m[2],
			Directory:    dir,
		}, true
	}

	if m := reIlluminaControl.FindStringSubmatch(name); m != nil {
		code := strings.ToUpper(m[1])
		return models.Sample{
			Source:       sourceByCode[code],
			SampleNumber: code,
			Directory:    dir,
		}, true
	}

	return models.Sample{}, false
}

// formatSampleDate rewrites the embedded DDMMYYYY sample date as
// YYYY-MM-DD.
func formatSampleDate(raw string) string {
	return fmt.Sprintf("%s-%s-%s", raw[4:], raw[2:4], raw[:2])
}
