package publishers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/pubsync/internal/domain"
)

type stubPublisher struct {
	id     string
	typ    string
	err    error
	calls  int
	closed bool
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, Event) error {
	s.calls++
	return s.err
}

type closingPublisher struct {
	stubPublisher
}

func (c *closingPublisher) Close() error {
	c.closed = true
	return nil
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	fanout := NewFanout([]Publisher{
		&stubPublisher{id: "ok", typ: "http"},
		nil,
		&stubPublisher{id: "bad", typ: "http", err: errors.New("failed")},
	})
	assert.Equal(t, 2, fanout.Size(), "nil publishers are dropped")

	count, err := fanout.Publish(context.Background(), Event{})
	assert.Equal(t, 1, count)
	assert.Error(t, err)
}

func TestFanoutAnnounceCountsDeliveries(t *testing.T) {
	ok := &stubPublisher{id: "ok", typ: "http"}
	bad := &stubPublisher{id: "bad", typ: "sqs", err: errors.New("throttled")}
	fanout := NewFanout([]Publisher{ok, bad})

	events := []Event{
		NewEvent("scholar_profile", domain.Publication{Title: "A"}, ""),
		NewEvent("scholar_profile", domain.Publication{Title: "B"}, "https://doi.org/10.1/x"),
	}
	delivered, err := fanout.Announce(context.Background(), events)
	assert.Equal(t, 2, delivered)
	assert.Error(t, err, "sqs publisher failures are reported")
	assert.Equal(t, 2, ok.calls)
	assert.Equal(t, 2, bad.calls)

	var empty *Fanout
	n, err := empty.Announce(context.Background(), events)
	assert.Zero(t, n)
	assert.NoError(t, err)
}

func TestFanoutCloseReleasesClosers(t *testing.T) {
	c := &closingPublisher{stubPublisher{id: "ps", typ: TypePubSub}}
	fanout := NewFanout([]Publisher{&stubPublisher{id: "h", typ: TypeHTTP}, c})
	require.NoError(t, fanout.Close())
	assert.True(t, c.closed)
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	pubs, err := BuildAll(context.Background(), reg, []PublisherConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com"}},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, pubs, 1)

	_, err = BuildAll(context.Background(), reg, []PublisherConfig{{ID: "k", Type: "kafka"}}, nil)
	assert.Error(t, err, "unregistered type")
}

func TestNewEventCarriesKey(t *testing.T) {
	pub := domain.Publication{Title: "Battery aging", Year: "2024"}
	evt := NewEvent("structured:scholarly", pub, "")
	assert.Equal(t, pub.Key(), evt.Key)
	assert.False(t, evt.AnnouncedAt.IsZero())
	assert.Equal(t, map[string]string{
		"source":          "structured:scholarly",
		"year":            "2024",
		"publication_key": pub.Key(),
	}, evt.attributes())
}
