package chunk

import "slices"

// Tags is a sorted set of routing labels.
type Tags []string

// NewTags builds a tag set, dropping duplicates and empty labels.
func NewTags(labels ...string) Tags {
	out := make(Tags, 0, len(labels))
	for _, l := range labels {
		if l != "" {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Has reports whether tag is in the set.
func (t Tags) Has(tag string) bool {
	_, ok := slices.BinarySearch(t, tag)
	return ok
}

// Any reports whether at least one of tags is in the set.
func (t Tags) Any(tags ...string) bool {
	for _, tag := range tags {
		if t.Has(tag) {
			return true
		}
	}
	return false
}
