package component

import (
	"fmt"
	"strings"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/errors"
)

// Filter decides whether a chunk is delivered along an edge.
type Filter func(c *chunk.Chunk) bool

// HasTag accepts chunks carrying tag.
func HasTag(tag string) Filter {
	return func(c *chunk.Chunk) bool { return c.Tags.Has(tag) }
}

// OfKind accepts chunks of the given kind.
func OfKind(kind chunk.Kind) Filter {
	return func(c *chunk.Chunk) bool { return c.Kind == kind }
}

// Chain combines filters; all must accept. A nil result accepts everything.
func Chain(filters ...Filter) Filter {
	var active []Filter
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(c *chunk.Chunk) bool {
		for _, f := range active {
			if !f(c) {
				return false
			}
		}
		return true
	}
}

// LookupFilter resolves a filter name used in graph definitions.
//
// The names samples, sampled, events, structure and scalar select chunks by
// kind tag. A leading underscore selects by arbitrary tag: "_raw" accepts
// chunks tagged "raw".
func LookupFilter(name string) (Filter, error) {
	switch name {
	case "samples", "sampled":
		return HasTag(chunk.TagSamples), nil
	case "events":
		return HasTag(chunk.TagEvents), nil
	case "structure":
		return HasTag(chunk.TagStructure), nil
	case "scalar":
		return HasTag(chunk.TagScalar), nil
	}
	if tag, ok := strings.CutPrefix(name, "_"); ok && tag != "" {
		return HasTag(tag), nil
	}
	return nil, errors.WrapFatal(fmt.Errorf("%w: unknown filter %q", errors.ErrDefinition, name),
		"Component", "LookupFilter", "resolve filter")
}
