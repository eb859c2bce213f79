package natspub

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/time/rate"

	"github.com/c360/mspikes/chunk"
	"github.com/c360/mspikes/component"
	"github.com/c360/mspikes/errors"
	"github.com/c360/mspikes/natsclient"
)

// StreamPublisher publishes through a JetStream stream.
// *natsclient.Client satisfies it.
type StreamPublisher interface {
	EnsureStream(ctx context.Context, name string, subjects ...string) (jetstream.Stream, error)
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Publisher sends every chunk it receives to NATS as JSON.
type Publisher struct {
	component.Base
	cfg     Config
	pub     component.Publisher
	stream  StreamPublisher
	owned   *natsclient.Client
	limiter *rate.Limiter
	metrics *publisherMetrics
}

// NewPublisher connects to cfg.URL, or uses the shared connection in deps
// when no url is given.
func NewPublisher(ctx context.Context, name string, cfg Config, deps component.Dependencies) (*Publisher, error) {
	p := &Publisher{
		Base: component.NewBase(name, deps),
		cfg:  cfg,
		pub:  deps.Publisher,
	}

	if cfg.URL != "" {
		client, err := natsclient.NewClient(cfg.URL,
			natsclient.WithLogger(deps.GetLogger()),
			natsclient.WithClientName("mspikes-"+name))
		if err != nil {
			return nil, errors.Wrap(err, "NATSPublisher", "NewPublisher", "create client")
		}
		if err := client.Connect(ctx); err != nil {
			return nil, errors.Wrap(err, "NATSPublisher", "NewPublisher", "connect")
		}
		p.pub, p.owned = client, client
	}
	if p.pub == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: no NATS connection; set url", errors.ErrInvalidConfig),
			"NATSPublisher", "NewPublisher", "resolve connection")
	}

	if cfg.Stream != "" {
		sp, ok := p.pub.(StreamPublisher)
		if !ok {
			p.closeOwned(ctx)
			return nil, errors.WrapInvalid(fmt.Errorf("%w: connection does not support streams", errors.ErrInvalidConfig),
				"NATSPublisher", "NewPublisher", "resolve stream")
		}
		if _, err := sp.EnsureStream(ctx, cfg.Stream, cfg.Prefix+".>"); err != nil {
			p.closeOwned(ctx)
			return nil, errors.Wrap(err, "NATSPublisher", "NewPublisher", "ensure stream")
		}
		p.stream = sp
	}

	if cfg.Rate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), max(cfg.Burst, 1))
	}

	metrics, err := newPublisherMetrics(deps.MetricsRegistry, name)
	if err != nil {
		deps.GetLogger().Error("Failed to initialize nats_publisher metrics", "error", err)
		metrics = nil
	}
	p.metrics = metrics

	p.Logger().Info("Publishing chunks", "prefix", cfg.Prefix, "stream", cfg.Stream, "rate", cfg.Rate)
	return p, nil
}

// Subject returns the subject c is published on: <prefix>.<kind>.<id>.
// Characters that are not valid in a subject token are replaced with '_'.
func Subject(prefix string, c *chunk.Chunk) string {
	id := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, c.ID)
	if id == "" {
		id = "_"
	}
	return prefix + "." + c.Kind.String() + "." + id
}

// Send publishes c.
func (p *Publisher) Send(ctx context.Context, c *chunk.Chunk) error {
	p.Received(c)
	if p.Closed() {
		return p.Fail(errors.WrapFatal(errors.ErrClosed, "NATSPublisher", "Send", "publish chunk"))
	}
	data, err := json.Marshal(c)
	if err != nil {
		return p.Fail(errors.WrapInvalid(err, "NATSPublisher", "Send", "encode chunk"))
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return p.Fail(errors.WrapTransient(err, "NATSPublisher", "Send", "wait for rate limit"))
		}
	}

	subject := Subject(p.cfg.Prefix, c)
	if p.stream != nil {
		err = p.stream.PublishToStream(ctx, subject, data)
	} else {
		err = p.pub.Publish(ctx, subject, data)
	}
	if err != nil {
		return p.Fail(errors.Wrap(err, "NATSPublisher", "Send", "publish "+subject))
	}
	p.metrics.recordPublished(c.Kind.String(), len(data))
	return nil
}

// Close flushes and closes a connection this node opened.
func (p *Publisher) Close(ctx context.Context) error {
	if p.Closed() {
		return nil
	}
	var errs []error
	if p.owned != nil {
		if err := p.owned.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := p.owned.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, p.Base.Close(ctx))
	return stderrors.Join(errs...)
}

// Throw drops the connection without flushing.
func (p *Publisher) Throw(ctx context.Context, err error) {
	p.Logger().Warn("Publishing aborted", "error", err)
	p.closeOwned(ctx)
	p.Base.Throw(ctx, err)
}

func (p *Publisher) closeOwned(ctx context.Context) {
	if p.owned != nil {
		_ = p.owned.Close(ctx)
		p.owned = nil
	}
}
