package ecg

// listItem is one entry of a GOT_LIST snapshot.
type listItem struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	IsAnnotated bool   `json:"isAnnotated"`
	SHA         string `json:"sha,omitempty"`

	// Annotation is nil when the server omits it.
	Annotation []string `json:"annotation"`
}

// mergeInto overlays the snapshot fields on r and reports whether anything
// changed. isAnnotated is not copied; it is derived from Annotation.
func (it listItem) mergeInto(r *Record) bool {
	changed := false
	if it.Timestamp != "" && it.Timestamp != r.Timestamp {
		r.Timestamp = it.Timestamp
		changed = true
	}
	if it.SHA != "" && it.SHA != r.SHA {
		r.SHA = it.SHA
		changed = true
	}
	if it.Annotation != nil && !equalStrings(it.Annotation, r.Annotation) {
		r.Annotation = append([]string{}, it.Annotation...)
		changed = true
	}
	return changed
}

// itemData is the GOT_ITEM_DATA payload.
type itemData struct {
	ID         string      `json:"id"`
	Signal     [][]float64 `json:"signal"`
	Frequency  float64     `json:"frequency"`
	Signame    []string    `json:"signame"`
	Units      []string    `json:"units"`
	Annotation []string    `json:"annotation"`
}

func (d itemData) applyTo(r *Record) {
	r.Signal = d.Signal
	if r.Signal == nil {
		r.Signal = [][]float64{}
	}
	r.Frequency = d.Frequency
	r.Signame = cloneStrings(d.Signame)
	r.Units = cloneStrings(d.Units)
	if d.Annotation != nil {
		r.Annotation = append([]string{}, d.Annotation...)
	}
	r.WaitingData = false
}

type commonAnnotations struct {
	Annotations []string `json:"annotations"`
}

type itemRequest struct {
	ID string `json:"id"`
}

type setAnnotationRequest struct {
	ID         string   `json:"id"`
	Annotation []string `json:"annotation"`
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
