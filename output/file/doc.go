// Package file provides the chunk_log sink for recording pipeline output to disk.
//
// # Overview
//
// chunk_log encodes every chunk it receives as a JSON record (the chunk.Record
// layout) and appends it to a file. Records are buffered and written once
// buffer_size of them are pending, and again when the node closes. When the
// run aborts the buffered records are still written, so the log ends at the
// last chunk that reached the node.
//
// # Configuration
//
//   - path: file to write (required); missing directories are created
//   - format: "jsonl" for one record per line (default) or "json" for
//     indented records separated by newlines
//   - append: append to an existing file instead of truncating it
//   - buffer_size: records held before a write (default 100, 0 writes each
//     record immediately)
//
// # Example
//
//	log = chunk_log((detect, _events), path="/tmp/spikes.jsonl", buffer_size=10)
//
// Each line carries the channel id, kind, exact rational offset and the
// payload:
//
//	{"id":"pen","kind":"events","offset":"3/2","seconds":1.5,"sampling_rate":20000,...}
package file
