// Package collector runs the single event loop that owns the pipeline.
// Inputs on any goroutine submit events; the loop handles one at a time so
// the dedup stores never see concurrent access.
package collector

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/PratikDhanave/group-message-collector/internal/models"
	"github.com/PratikDhanave/group-message-collector/internal/pipeline"
	"github.com/PratikDhanave/group-message-collector/internal/sink"
)

// ErrStopped is returned once the loop has exited.
var ErrStopped = errors.New("collector stopped")

const previewLen = 80

type request struct {
	ctx   context.Context
	event models.Event
	stats bool
	reply chan response
}

type response struct {
	decision models.Decision
	stats    pipeline.Stats
	err      error
}

// Collector serializes access to a Pipeline and forwards accepted records
// to a Sink.
type Collector struct {
	pipeline   *pipeline.Pipeline
	sink       sink.Sink
	log        zerolog.Logger
	sweepEvery time.Duration

	requests chan request
	done     chan struct{}
}

// Option customizes a Collector.
type Option func(*Collector)

// WithSweepInterval sets how often idle stores are swept. Zero disables
// the timer; checks still evict as they go.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Collector) { c.sweepEvery = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Collector) { c.log = l }
}

func New(p *pipeline.Pipeline, s sink.Sink, opts ...Option) *Collector {
	c := &Collector{
		pipeline:   p,
		sink:       s,
		log:        zerolog.Nop(),
		sweepEvery: time.Minute,
		requests:   make(chan request),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes requests until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) error {
	defer close(c.done)

	var tick <-chan time.Time
	if c.sweepEvery > 0 {
		t := time.NewTicker(c.sweepEvery)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			if n := c.pipeline.Sweep(); n > 0 {
				c.log.Debug().Int("evicted", n).Msg("swept dedup stores")
			}
		case req := <-c.requests:
			req.reply <- c.handle(req)
		}
	}
}

// Submit hands ev to the loop and waits for its decision.
func (c *Collector) Submit(ctx context.Context, ev models.Event) (models.Decision, error) {
	resp, err := c.do(ctx, request{ctx: ctx, event: ev})
	if err != nil {
		return models.Decision{}, err
	}
	return resp.decision, resp.err
}

// Stats returns a pipeline snapshot taken on the loop.
func (c *Collector) Stats(ctx context.Context) (pipeline.Stats, error) {
	resp, err := c.do(ctx, request{ctx: ctx, stats: true})
	if err != nil {
		return pipeline.Stats{}, err
	}
	return resp.stats, nil
}

func (c *Collector) do(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)

	select {
	case c.requests <- req:
	case <-ctx.Done():
		return response{}, ctx.Err()
	case <-c.done:
		return response{}, ErrStopped
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

func (c *Collector) handle(req request) response {
	if req.stats {
		return response{stats: c.pipeline.Stats()}
	}
	if err := req.ctx.Err(); err != nil {
		return response{err: err}
	}

	ev := req.event
	d, err := c.pipeline.OnMessage(req.ctx, ev)
	if err != nil {
		c.log.Warn().Err(err).Str("message_id", ev.MessageID).Str("group_id", ev.GroupID).Msg("message skipped")
		return response{err: err}
	}
	if !d.Accepted {
		c.log.Debug().Str("message_id", ev.MessageID).Str("reason", string(d.Reason)).Msg("message suppressed")
		return response{decision: d}
	}

	rec := *d.Record
	// The store already recorded this message; a failed write is logged
	// and not retried.
	if err := c.sink.Write(context.WithoutCancel(req.ctx), rec); err != nil {
		c.log.Error().Err(err).Str("message_id", rec.MessageID).Msg("persist record")
	}

	c.log.Info().
		Time("sent_at", time.Unix(rec.Timestamp, 0).UTC()).
		Str("group", rec.GroupName).
		Str("author", rec.AuthorName).
		Str("text", preview(rec.Message)).
		Msg("message captured")
	return response{decision: d}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen])
}
