package ecg

// RecordStatus is the payload loading state of a Record.
type RecordStatus int

const (
	StatusUnloaded RecordStatus = iota
	StatusLoading
	StatusLoaded
)

func (s RecordStatus) String() string {
	switch s {
	case StatusUnloaded:
		return "unloaded"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Record is one cached ECG recording. Metadata is always present; Signal is
// nil until the payload has been fetched.
type Record struct {
	ID        string
	Timestamp string

	// Annotation is the ordered list of taxonomy keys.
	Annotation []string

	// Frequency is the sampling rate in Hz.
	Frequency float64
	SHA       string

	// Signal holds one sample slice per channel. It is shared between
	// copies and must not be modified.
	Signal  [][]float64
	Signame []string
	Units   []string

	// WaitingData is true while a payload request is outstanding.
	WaitingData bool
}

func newRecord(id string) *Record {
	return &Record{
		ID:         id,
		Annotation: []string{},
	}
}

// IsAnnotated reports whether the record carries at least one annotation.
func (r Record) IsAnnotated() bool {
	return len(r.Annotation) > 0
}

// Loaded reports whether the signal payload is present.
func (r Record) Loaded() bool {
	return r.Signal != nil
}

// Status returns the payload loading state.
func (r Record) Status() RecordStatus {
	switch {
	case r.Loaded():
		return StatusLoaded
	case r.WaitingData:
		return StatusLoading
	default:
		return StatusUnloaded
	}
}

// Channels returns the number of signal channels, or 0 when unloaded.
func (r Record) Channels() int {
	return len(r.Signal)
}

// clone copies r so callers cannot reach cached slices, except Signal
// which is never modified in place.
func (r *Record) clone() Record {
	c := *r
	c.Annotation = cloneStrings(r.Annotation)
	c.Signame = cloneStrings(r.Signame)
	c.Units = cloneStrings(r.Units)
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
