package entrywriter

import (
	"math/big"
	"slices"
	"sort"
)

// tableEntry positions one entry on the container timeline.
type tableEntry struct {
	Offset *big.Rat
	Name   string
}

// Table is an offset-sorted index of entries. Entries sharing an offset
// keep their insertion order.
type Table struct {
	entries []tableEntry
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// upper returns the index of the first entry whose offset is after off.
func (t *Table) upper(off *big.Rat) int {
	return sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Offset.Cmp(off) > 0
	})
}

// Insert adds name at offset, keeping the table sorted.
func (t *Table) Insert(offset *big.Rat, name string) {
	i := t.upper(offset)
	t.entries = slices.Insert(t.entries, i, tableEntry{Offset: new(big.Rat).Set(offset), Name: name})
}

// Lookup returns the entry with the greatest offset not exceeding off.
func (t *Table) Lookup(off *big.Rat) (name string, offset *big.Rat, ok bool) {
	i := t.upper(off) - 1
	if i < 0 {
		return "", nil, false
	}
	return t.entries[i].Name, t.entries[i].Offset, true
}

// NextAfter returns the first entry offset strictly after off, or nil.
func (t *Table) NextAfter(off *big.Rat) *big.Rat {
	i := t.upper(off)
	if i == len(t.entries) {
		return nil
	}
	return t.entries[i].Offset
}

// First returns the earliest entry.
func (t *Table) First() (name string, offset *big.Rat, ok bool) {
	if len(t.entries) == 0 {
		return "", nil, false
	}
	return t.entries[0].Name, t.entries[0].Offset, true
}

// Names returns entry names in offset order.
func (t *Table) Names() []string {
	out := make([]string, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.Name
	}
	return out
}

func (t *Table) clone() Table {
	return Table{entries: slices.Clone(t.entries)}
}
