// Package entrywriter implements the entry_writer sink, which places a
// continuous stream of chunks into the named entries of a container.
//
// The writer keeps an offset-sorted table of entries. Structure chunks
// create entries (or are checked against existing ones); sampled and event
// chunks are written to the entry with the greatest offset not exceeding
// theirs. A gap in sampled data starts a successor entry named by
// incrementing a numeric suffix, while an overlap is a conflict. Event
// chunks that cross into the next entry are split at the boundary, and the
// part after it is written to that entry.
//
// All writes for one chunk, including both halves of a split, are planned
// before anything is written and then applied as one atomic batch:
//
//	out = entry_writer(spikes, file="spikes.db", auto_entry="entry")
package entrywriter
