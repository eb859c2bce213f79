// Package mspikes turns continuously sampled multi-channel voltage recordings
// into spike-time events with aligned waveforms and features, stored in an
// entry-oriented container.
//
// # Architecture
//
// A run is a graph of nodes exchanging chunks:
//
//	container_reader ──► signal_stats ──► spike_extract ──► spike_features ──► entry_writer
//	        │                                                                     ▲
//	        └──────────────────────── (input, structure) ─────────────────────────┘
//
// Sources are pulled by the driver in component/flowgraph; every other node
// receives chunks pushed from upstream and forwards its output to the nodes
// that name it as a source, optionally through tag filters such as
// (input, samples) or (spikes, events). Nodes marked parallel shard their
// work by chunk id while keeping each channel in order.
//
// # Packages
//
//   - chunk: the Chunk value, payload kinds, tags and exact rational time.
//   - component, component/flowgraph: node contracts, the registry and the
//     definition language, build and run driver.
//   - processor/...: splitter, signal statistics, spike detection and
//     waveform features.
//   - input/..., output/...: container reader, synthetic sources, the entry
//     writer, the NATS publisher and the JSON-lines chunk log.
//   - storage/container, storage/sqlitestore: the container model with an
//     in-memory and a SQLite backend.
//   - config: run configuration files, schema validation and the predefined
//     toolchains.
//   - errors, metric, health, natsclient, pkg/retry, pkg/tlsutil: ambient
//     support shared by every node.
//
// The mspikes command in cmd/mspikes loads a configuration, builds the graph
// and runs it to completion:
//
//	mspikes -t spk_extract -set input.file=rec.db -set output.file=spikes.db
package mspikes
