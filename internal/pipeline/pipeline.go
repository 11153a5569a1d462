package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PratikDhanave/group-message-collector/internal/dedup"
	"github.com/PratikDhanave/group-message-collector/internal/fingerprint"
	"github.com/PratikDhanave/group-message-collector/internal/models"
	"github.com/PratikDhanave/group-message-collector/internal/normalize"
)

// ErrMetadata marks a failed chat/contact lookup. The event is skipped
// without touching dedup state.
var ErrMetadata = errors.New("metadata resolution failed")

// RepostMode selects the canonical text form fed to the repost hash.
type RepostMode string

const (
	// RepostNormalized hashes normalize.Text output.
	RepostNormalized RepostMode = "normalized"
	// RepostCompact hashes normalize.Compact output, matching ad_hash values
	// written by the older 90-day collector.
	RepostCompact RepostMode = "compact"
)

// DefaultUnknownAuthor is used when no display name can be resolved.
const DefaultUnknownAuthor = "Unknown"

// Policy wires the three stores. A zero Window disables that store.
type Policy struct {
	Exact  dedup.Policy
	Repost dedup.Policy
	// IDs bounds the at-most-once message id set. Refresh is ignored.
	IDs dedup.Policy

	RepostMode        RepostMode
	UnknownAuthorName string
}

// Metadata is what a Resolver knows about an event's chat and author.
type Metadata struct {
	GroupName   string
	AuthorName  string
	AuthorPhone *string
}

// Resolver looks up chat and contact details for an event.
type Resolver interface {
	Resolve(ctx context.Context, ev models.Event) (Metadata, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ev models.Event) (Metadata, error)

func (f ResolverFunc) Resolve(ctx context.Context, ev models.Event) (Metadata, error) {
	return f(ctx, ev)
}

// EventResolver trusts the metadata the bridge already attached to the event.
type EventResolver struct{}

func (EventResolver) Resolve(_ context.Context, ev models.Event) (Metadata, error) {
	return Metadata{
		GroupName:   ev.GroupName,
		AuthorName:  ev.AuthorName,
		AuthorPhone: ev.AuthorPhone,
	}, nil
}

// Stats is a snapshot of pipeline counters and store sizes.
type Stats struct {
	Accepted   int                           `json:"accepted"`
	Suppressed map[models.SuppressReason]int `json:"suppressed"`
	Failed     int                           `json:"failed"`
	Hydrated   int                           `json:"hydrated"`
	ExactKeys  int                           `json:"exact_keys"`
	RepostKeys int                           `json:"repost_keys"`
	KnownIDs   int                           `json:"known_ids"`
}

// Pipeline turns events into decisions. It owns the dedup stores and is
// not safe for concurrent use.
type Pipeline struct {
	policy   Policy
	exact    *dedup.Store
	repost   *dedup.Store
	ids      *dedup.Store
	resolver Resolver
	now      func() time.Time

	accepted   int
	suppressed map[models.SuppressReason]int
	failed     int
	hydrated   int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the wall clock used as "now" for dedup checks.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithResolver sets the metadata resolver. The default is EventResolver.
func WithResolver(r Resolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

func New(policy Policy, opts ...Option) *Pipeline {
	if policy.RepostMode == "" {
		policy.RepostMode = RepostNormalized
	}
	if policy.UnknownAuthorName == "" {
		policy.UnknownAuthorName = DefaultUnknownAuthor
	}

	p := &Pipeline{
		policy:     policy,
		resolver:   EventResolver{},
		now:        time.Now,
		suppressed: make(map[models.SuppressReason]int),
	}
	if policy.Exact.Window > 0 {
		p.exact = dedup.New(policy.Exact)
	}
	if policy.Repost.Window > 0 {
		p.repost = dedup.New(policy.Repost)
	}
	if policy.IDs.Window > 0 {
		p.ids = dedup.New(dedup.Policy{Window: policy.IDs.Window})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnMessage decides whether ev is new. Filtered events and metadata
// failures leave the stores untouched; every event that reaches the
// fingerprint stage is checked against each enabled store exactly once.
//
// Checks run against the arrival clock. Entries are stamped with the
// event's own timestamp, the same value Hydrate later seeds from, so a
// restart rebuilds exactly the state the live process had.
func (p *Pipeline) OnMessage(ctx context.Context, ev models.Event) (models.Decision, error) {
	if strings.TrimSpace(ev.Body) == "" {
		return p.suppress(models.ReasonEmptyText), nil
	}
	if !ev.IsGroup {
		return p.suppress(models.ReasonNotGroup), nil
	}

	now := p.now().Unix()
	stamp := ev.Timestamp
	if stamp == 0 {
		stamp = now
	}
	if p.ids != nil && ev.MessageID != "" && p.ids.Contains(ev.MessageID, now) {
		return p.suppress(models.ReasonKnownID), nil
	}

	meta, err := p.resolver.Resolve(ctx, ev)
	if err != nil {
		p.failed++
		return models.Decision{}, fmt.Errorf("%w: message %s: %w", ErrMetadata, ev.MessageID, err)
	}

	author := ev.Author()
	normalized := normalize.Text(ev.Body)
	contentHash := fingerprint.Exact(author, normalized)

	var adHash string
	if p.repost != nil {
		adHash = fingerprint.Repost(p.repostText(ev.Body, normalized))
	}

	exactDup := p.exact != nil && p.exact.CheckAndRecordAt(contentHash, now, stamp)
	repostDup := p.repost != nil && p.repost.CheckAndRecordAt(fingerprint.RepostKey(author, adHash), now, stamp)

	switch {
	case exactDup:
		return p.suppress(models.ReasonExactRepeat), nil
	case repostDup:
		return p.suppress(models.ReasonRepost), nil
	}

	if p.ids != nil && ev.MessageID != "" {
		p.ids.Seed(ev.MessageID, stamp)
	}
	p.accepted++

	authorName := meta.AuthorName
	if authorName == "" {
		authorName = p.policy.UnknownAuthorName
	}
	return models.Accepted(models.Record{
		MessageID:   ev.MessageID,
		GroupID:     ev.GroupID,
		GroupName:   meta.GroupName,
		AuthorID:    author,
		AuthorName:  authorName,
		AuthorPhone: meta.AuthorPhone,
		Message:     ev.Body,
		AdHash:      adHash,
		Timestamp:   stamp,
		ContentHash: contentHash,
	}), nil
}

// Hydrate seeds the stores from one previously persisted record.
func (p *Pipeline) Hydrate(rec models.Record) {
	p.hydrated++

	if p.ids != nil && rec.MessageID != "" {
		p.ids.Seed(rec.MessageID, rec.Timestamp)
	}
	if rec.AuthorID == "" {
		return
	}
	if p.repost != nil && rec.AdHash != "" {
		p.repost.Seed(fingerprint.RepostKey(rec.AuthorID, rec.AdHash), rec.Timestamp)
	}
	if p.exact != nil && rec.Message != "" {
		p.exact.Seed(fingerprint.Exact(rec.AuthorID, normalize.Text(rec.Message)), rec.Timestamp)
	}
}

// Sweep evicts stale entries from every store and returns how many went.
func (p *Pipeline) Sweep() int {
	now := p.now().Unix()
	n := 0
	for _, s := range []*dedup.Store{p.exact, p.repost, p.ids} {
		if s != nil {
			n += s.EvictExpired(now)
		}
	}
	return n
}

// Stats returns a copy of the current counters.
func (p *Pipeline) Stats() Stats {
	st := Stats{
		Accepted:   p.accepted,
		Suppressed: make(map[models.SuppressReason]int, len(p.suppressed)),
		Failed:     p.failed,
		Hydrated:   p.hydrated,
	}
	for r, n := range p.suppressed {
		st.Suppressed[r] = n
	}
	if p.exact != nil {
		st.ExactKeys = p.exact.Len()
	}
	if p.repost != nil {
		st.RepostKeys = p.repost.Len()
	}
	if p.ids != nil {
		st.KnownIDs = p.ids.Len()
	}
	return st
}

func (p *Pipeline) suppress(reason models.SuppressReason) models.Decision {
	p.suppressed[reason]++
	return models.Suppressed(reason)
}

func (p *Pipeline) repostText(body, normalized string) string {
	if p.policy.RepostMode == RepostCompact {
		return normalize.Compact(body)
	}
	return normalized
}
