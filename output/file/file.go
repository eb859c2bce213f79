// Package file provides the chunk_log sink, which records chunks to a file
package file

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
)

// Config holds configuration for the chunk_log sink
type Config struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Append     bool   `json:"append"`
	BufferSize int    `json:"buffer_size"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "path is required")
	}
	if c.Format != "jsonl" && c.Format != "json" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"format must be one of: json, jsonl")
	}
	if c.BufferSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"buffer_size cannot be negative")
	}
	return nil
}

// DefaultConfig returns default configuration for the chunk log
func DefaultConfig() Config {
	return Config{
		Format:     "jsonl",
		Append:     false,
		BufferSize: 100,
	}
}

// Output writes one JSON record per chunk
type Output struct {
	component.Base
	cfg     Config
	file    *os.File
	buffer  [][]byte
	metrics *logMetrics

	written int64
}

// NewOutput opens the log file, creating its directory when needed
func NewOutput(name string, cfg Config, deps component.Dependencies) (*Output, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, errors.WrapFatal(err, "Output", "NewOutput", "create output directory")
	}
	flags := os.O_CREATE | os.O_WRONLY
	if cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(cfg.Path, flags, 0644)
	if err != nil {
		return nil, errors.WrapFatal(err, "Output", "NewOutput", "open output file")
	}

	metrics, err := newLogMetrics(deps.MetricsRegistry, name)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize chunk_log metrics", "error", err)
		metrics = nil
	}

	o := &Output{
		Base:    component.NewBase(name, deps),
		cfg:     cfg,
		file:    f,
		buffer:  make([][]byte, 0, cfg.BufferSize),
		metrics: metrics,
	}
	o.Logger().Info("Chunk log opened",
		"output_file", cfg.Path,
		"format", cfg.Format,
		"append", cfg.Append,
		"buffer_size", cfg.BufferSize)
	return o, nil
}

// Send buffers the record for c, flushing when the buffer is full
func (o *Output) Send(_ context.Context, c *chunk.Chunk) error {
	o.Received(c)
	if o.file == nil {
		return o.Fail(errors.WrapFatal(errors.ErrClosed, "Output", "Send", "write chunk"))
	}

	var (
		data []byte
		err  error
	)
	if o.cfg.Format == "json" {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = json.Marshal(c)
	}
	if err != nil {
		return o.Fail(errors.WrapInvalid(err, "Output", "Send", "encode chunk"))
	}
	o.buffer = append(o.buffer, append(data, '\n'))

	if len(o.buffer) >= o.cfg.BufferSize {
		return o.Fail(o.flush())
	}
	return nil
}

// flush writes buffered records to the file
func (o *Output) flush() error {
	if len(o.buffer) == 0 {
		return nil
	}
	records := o.buffer
	o.buffer = o.buffer[:0:0]

	for i, rec := range records {
		n, err := o.file.Write(rec)
		if err != nil {
			o.metrics.recordError()
			return errors.WrapTransient(fmt.Errorf("record %d of %d: %w", i+1, len(records), err),
				"Output", "flush", "write records")
		}
		o.written++
		o.metrics.recordWritten(n)
	}
	o.Logger().Debug("Flush completed", "records", len(records), "total_written", o.written)
	return nil
}

// Close flushes remaining records and closes the file
func (o *Output) Close(ctx context.Context) error {
	if o.Closed() {
		return nil
	}
	err := o.closeFile()
	return stderrors.Join(err, o.Base.Close(ctx))
}

// Throw flushes what was received before the failure so the log shows
// where the run stopped
func (o *Output) Throw(ctx context.Context, err error) {
	if cerr := o.closeFile(); cerr != nil {
		o.Logger().Warn("failed to close output file", "error", cerr, "path", o.cfg.Path)
	}
	o.Base.Throw(ctx, err)
}

func (o *Output) closeFile() error {
	if o.file == nil {
		return nil
	}
	err := o.flush()
	if cerr := o.file.Close(); cerr != nil {
		err = stderrors.Join(err, errors.Wrap(cerr, "Output", "Close", "close output file"))
	}
	o.file = nil
	o.Logger().Info("Chunk log closed", "output_file", o.cfg.Path, "records", o.written)
	return err
}

// NewSink builds a chunk_log node from its parameters
func NewSink(name string, rawConfig json.RawMessage, deps component.Dependencies) (component.Component, error) {
	cfg := DefaultConfig()
	if err := component.SafeUnmarshal(rawConfig, &cfg); err != nil {
		return nil, errors.Wrap(err, "Output", "NewSink", "config unmarshal")
	}
	return NewOutput(name, cfg, deps)
}

// Register registers the chunk_log sink with the given registry
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "chunk_log",
		Factory:     NewSink,
		Type:        component.TypeSink,
		Description: "Chunk log writing one JSON record per chunk",
		Version:     "1.0.0",
	})
}
