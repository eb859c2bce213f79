package config

import (
	"fmt"
	"strings"

	"github.com/c360/mspikes/component/flowgraph"
	"github.com/c360/mspikes/errors"
)

// ParseSet parses a node.key=value override. The value is read as a literal
// of the definition language; anything that does not parse as one, such as
// a bare path, is taken as a string.
func ParseSet(s string) (node, key string, value any, err error) {
	lhs, rhs, ok := strings.Cut(s, "=")
	if ok {
		node, key, ok = strings.Cut(strings.TrimSpace(lhs), ".")
	}
	if !ok || node == "" || key == "" {
		return "", "", nil, errors.WrapInvalid(fmt.Errorf("%w: override %q is not node.key=value", errors.ErrInvalidConfig, s),
			"Config", "ParseSet", "parse override")
	}
	rhs = strings.TrimSpace(rhs)
	value, perr := flowgraph.ParseValue(rhs)
	if perr != nil {
		value = rhs
	}
	return node, key, value, nil
}

// ApplySets parses each override and records it in c.
func (c *Config) ApplySets(sets []string) error {
	for _, s := range sets {
		node, key, value, err := ParseSet(s)
		if err != nil {
			return err
		}
		c.Set(node, key, value)
	}
	return nil
}
