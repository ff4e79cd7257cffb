package ecg

// AnnotationGroup is one group of the annotation taxonomy. A group without
// annotations is itself a leaf.
type AnnotationGroup struct {
	ID          string   `json:"id"`
	Annotations []string `json:"annotations"`
}

// IsLeaf reports whether the group has no children.
func (g AnnotationGroup) IsLeaf() bool {
	return len(g.Annotations) == 0
}

// Keys returns the annotation keys the group contributes, in the form
// "group/annotation", or just "group" for a leaf group.
func (g AnnotationGroup) Keys() []string {
	if g.IsLeaf() {
		return []string{g.ID}
	}
	keys := make([]string, 0, len(g.Annotations))
	for _, a := range g.Annotations {
		keys = append(keys, g.ID+"/"+a)
	}
	return keys
}

func cloneGroups(groups []AnnotationGroup) []AnnotationGroup {
	out := make([]AnnotationGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, AnnotationGroup{
			ID:          g.ID,
			Annotations: append([]string{}, g.Annotations...),
		})
	}
	return out
}
