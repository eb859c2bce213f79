package container

import (
	"fmt"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/errors"
)

// ValidateEntry checks the fields every backend requires of a new entry.
func ValidateEntry(e EntryInfo) error {
	if e.Name == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: entry name is empty", errors.ErrInvalidData),
			"Container", "ValidateEntry", "check entry")
	}
	return nil
}

// ValidateDataset checks the fields every backend requires of a new dataset.
func ValidateDataset(d DatasetInfo) error {
	switch {
	case d.Name == "":
		return errors.WrapInvalid(fmt.Errorf("%w: dataset name is empty", errors.ErrInvalidData),
			"Container", "ValidateDataset", "check dataset")
	case d.Kind != chunk.Sampled && d.Kind != chunk.Events:
		return errors.WrapInvalid(fmt.Errorf("%w: cannot store %s data", errors.ErrInvalidData, d.Kind),
			"Container", "ValidateDataset", "check dataset")
	case d.Kind == chunk.Sampled && d.SamplingRate <= 0:
		return errors.WrapInvalid(fmt.Errorf("%w: sampled dataset %q needs a sampling rate", errors.ErrInvalidData, d.Name),
			"Container", "ValidateDataset", "check dataset")
	}
	return nil
}

func checkCapacity(d DatasetInfo) error {
	if !d.Growable && d.Length > 0 {
		return errors.WrapFatal(fmt.Errorf("%w: dataset %q is not growable", errors.ErrCapacity, d.Name),
			"Container", "Apply", "extend dataset")
	}
	return nil
}

func conflict(format string, args ...any) error {
	return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrConflict, fmt.Sprintf(format, args...)),
		"Container", "Apply", "check batch")
}

func entryNotFound(method, entry string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrEntryNotFound, entry), "Container", method, "find entry")
}

func datasetNotFound(method, entry, dataset string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %q in entry %q", errors.ErrDatasetNotFound, dataset, entry),
		"Container", method, "find dataset")
}
