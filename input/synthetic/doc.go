// Package synthetic provides generated sources for exercising pipelines
// without a recording: rand_samples emits seeded gaussian noise and
// spike_train adds a biphasic template at a fixed period.
package synthetic
