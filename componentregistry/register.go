// Package componentregistry registers every mspikes node type and storage
// backend.
package componentregistry

import (
	"errors"

	"github.com/c360/mspikes/component"
	pkgerrors "github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/input/containerreader"
	"github.com/c360/mspikes/input/synthetic"
	"github.com/c360/mspikes/output/entrywriter"
	"github.com/c360/mspikes/output/file"
	"github.com/c360/mspikes/output/natspub"
	"github.com/c360/mspikes/processor/signalstats"
	"github.com/c360/mspikes/processor/spikedetect"
	"github.com/c360/mspikes/processor/spikefeatures"
	"github.com/c360/mspikes/processor/splitter"
	"github.com/c360/mspikes/storage/container"
	"github.com/c360/mspikes/storage/sqlitestore"
)

// Register registers all node types with the provided registry:
//
// Sources:
//   - container_reader (entries of a container in time order)
//   - rand_samples, spike_train (generated signals)
//
// Processors:
//   - splitter (fixed-size sampled chunks, time window)
//   - signal_stats (moving mean and RMS)
//   - spike_extract (threshold detection and waveform extraction)
//   - spike_features (upsampling, alignment, PCA and measurements)
//
// Sinks:
//   - entry_writer (entry-splitting container writer)
//   - chunk_log (JSON lines)
//   - nats_publisher (NATS subjects or a JetStream stream)
func Register(registry *component.Registry) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	steps := []struct {
		what     string
		register func(*component.Registry) error
	}{
		{"container_reader source", containerreader.Register},
		{"synthetic sources", synthetic.Register},
		{"splitter processor", splitter.Register},
		{"signal_stats processor", signalstats.Register},
		{"spike_extract processor", spikedetect.Register},
		{"spike_features processor", spikefeatures.Register},
		{"entry_writer sink", entrywriter.Register},
		{"chunk_log sink", file.Register},
		{"nats_publisher sink", natspub.Register},
	}
	for _, s := range steps {
		if err := s.register(registry); err != nil {
			return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", s.what+" registration")
		}
	}
	return nil
}

// Opener returns a container opener with every storage backend registered.
func Opener() *container.Backends {
	opener := container.NewOpener()
	sqlitestore.Register(opener)
	return opener
}
