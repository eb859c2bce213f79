package config

import (
	"slices"
	"strings"
)

// Toolchain is a predefined graph. Required parameters such as input and
// output files are supplied as overrides, e.g. -set input.file=rec.db.
type Toolchain struct {
	Name        string
	Description string
	Definition  string
}

var toolchains = []Toolchain{
	{
		Name:        "spk_extract",
		Description: "Extract spikes from raw recordings",
		Definition: `
input = container_reader()
stats = signal_stats((input, samples))
spikes = spike_extract(stats, thresh_rel=4.5)
output = entry_writer((input, structure), (spikes, events), create=True)
`,
	},
	{
		Name:        "spk_features",
		Description: "Extract and align spikes, then measure features",
		Definition: `
input = container_reader()
stats = signal_stats((input, samples))
spikes = spike_extract(stats, thresh_rel=4.5)
feats = spike_features((spikes, events))
output = entry_writer((input, structure), (feats, events), create=True)
`,
	},
	{
		Name:        "spk_publish",
		Description: "Extract spikes and publish them to NATS",
		Definition: `
input = container_reader()
stats = signal_stats((input, samples))
spikes = spike_extract(stats, thresh_rel=4.5)
nats = nats_publisher((input, structure), (spikes, events))
`,
	},
	{
		Name:        "spk_demo",
		Description: "Detect spikes in a synthetic train and log them",
		Definition: `
input = spike_train(truth=True)
stats = signal_stats((input, samples))
spikes = spike_extract(stats, thresh_rel=-4.5)
log = chunk_log((spikes, events), (input, events), path="spikes.jsonl")
`,
	},
}

// Toolchains returns the predefined graphs sorted by name.
func Toolchains() []Toolchain {
	out := slices.Clone(toolchains)
	slices.SortFunc(out, func(a, b Toolchain) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// LookupToolchain finds a predefined graph by name.
func LookupToolchain(name string) (Toolchain, bool) {
	i := slices.IndexFunc(toolchains, func(t Toolchain) bool { return t.Name == name })
	if i < 0 {
		return Toolchain{}, false
	}
	return toolchains[i], true
}
