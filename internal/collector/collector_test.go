package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/group-message-collector/internal/dedup"
	"github.com/PratikDhanave/group-message-collector/internal/models"
	"github.com/PratikDhanave/group-message-collector/internal/pipeline"
)

type memSink struct {
	mu   sync.Mutex
	recs []models.Record
	err  error
}

func (m *memSink) Write(_ context.Context, rec models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return m.err
}

func (m *memSink) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r.MessageID)
	}
	return out
}

func newPipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Policy{
		Exact:  dedup.Policy{Window: 120, Refresh: true},
		Repost: dedup.Policy{Window: 90 * 24 * 3600},
		IDs:    dedup.Policy{Window: 90 * 24 * 3600},
	})
}

func start(t *testing.T, c *Collector) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func event(id, author, body string) models.Event {
	return models.Event{MessageID: id, GroupID: "g", GroupName: "G", AuthorID: author, Body: body, IsGroup: true, Timestamp: time.Now().Unix()}
}

func TestSubmitAcceptsAndPersists(t *testing.T) {
	s := &memSink{}
	c := New(newPipeline(), s)
	start(t, c)

	d, err := c.Submit(context.Background(), event("m1", "u1", "Bom dia grupo"))
	require.NoError(t, err)
	assert.True(t, d.Accepted)

	d, err = c.Submit(context.Background(), event("m2", "u1", "bom dia, grupo!"))
	require.NoError(t, err)
	assert.Equal(t, models.ReasonExactRepeat, d.Reason)

	assert.Equal(t, []string{"m1"}, s.ids())
}

func TestConcurrentSubmitsAreSerialized(t *testing.T) {
	s := &memSink{}
	c := New(newPipeline(), s)
	start(t, c)

	// 20 authors each send the same text 10 times from different goroutines.
	var wg sync.WaitGroup
	for a := 0; a < 20; a++ {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(a, i int) {
				defer wg.Done()
				_, err := c.Submit(context.Background(), event(fmt.Sprintf("m-%d-%d", a, i), fmt.Sprintf("u%d", a), "mesmo texto"))
				assert.NoError(t, err)
			}(a, i)
		}
	}
	wg.Wait()

	assert.Len(t, s.ids(), 20)

	st, err := c.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, st.Accepted)
	assert.Equal(t, 180, st.Suppressed[models.ReasonExactRepeat])
}

func TestSinkFailureKeepsDedupState(t *testing.T) {
	s := &memSink{err: errors.New("no space left on device")}
	c := New(newPipeline(), s)
	start(t, c)

	d, err := c.Submit(context.Background(), event("m1", "u1", "anúncio"))
	require.NoError(t, err)
	assert.True(t, d.Accepted)

	d, err = c.Submit(context.Background(), event("m2", "u1", "anúncio"))
	require.NoError(t, err)
	assert.False(t, d.Accepted)
}

func TestMetadataFailureIsReturned(t *testing.T) {
	p := pipeline.New(pipeline.Policy{Exact: dedup.Policy{Window: 120}},
		pipeline.WithResolver(pipeline.ResolverFunc(func(context.Context, models.Event) (pipeline.Metadata, error) {
			return pipeline.Metadata{}, errors.New("chat not found")
		})))
	s := &memSink{}
	c := New(p, s)
	start(t, c)

	_, err := c.Submit(context.Background(), event("m1", "u1", "hi"))
	assert.ErrorIs(t, err, pipeline.ErrMetadata)
	assert.Empty(t, s.ids())
}

func TestSubmitAfterStop(t *testing.T) {
	c := New(newPipeline(), &memSink{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	_, err := c.Submit(context.Background(), event("m1", "u1", "hi"))
	assert.ErrorIs(t, err, ErrStopped)
}

func TestSubmitHonoursContext(t *testing.T) {
	c := New(newPipeline(), &memSink{})
	// loop not running: the send blocks until the context gives up

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Submit(ctx, event("m1", "u1", "hi"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPreview(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "é"
	}
	assert.Len(t, []rune(preview(long)), previewLen)
	assert.Equal(t, "short", preview("short"))
}
