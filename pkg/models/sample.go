package models

// Sample source categories encoded in sequencing filenames.
const (
	SourceFood            = "food"
	SourceHuman           = "human"
	SourceVeterinary      = "veterinary"
	SourceEnvironment     = "environment"
	SourceReference       = "reference"
	SourceSpeciesTyping   = "species-typing"
	SourceNegativeControl = "negative-control"
	SourcePositiveControl = "positive-control"
)

// Sample is one physical biological sample inferred from one or more raw
// read files. Samples are built transiently per directory scan and never
// persisted.
type Sample struct {
	Source        string `json:"source"`
	SampleNumber  string `json:"sample_number"`
	Directory     string `json:"directory"`
	RunDate       string `json:"run_date,omitempty"`
	RawSampleDate string `json:"raw_sample_date,omitempty"`
}

// Key is the dedup identity for a sample: source code plus sample number,
// or the bare control code for control samples.
func (s Sample) Key() string {
	switch s.Source {
	case SourceNegativeControl, SourcePositiveControl:
		return s.SampleNumber
	default:
		return s.Source + "-" + s.SampleNumber
	}
}
