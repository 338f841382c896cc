package publishers

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubSubPublisherPublishes(t *testing.T) {
	// Use the in-memory Pub/Sub emulator.
	server := pstest.NewServer()
	defer server.Close()
	t.Setenv("PUBSUB_EMULATOR_HOST", server.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	require.NoError(t, err)
	defer client.Close()
	_, err = client.CreateTopic(ctx, "pubs")
	require.NoError(t, err)

	pub, err := newPubSubPublisher(ctx, PublisherConfig{
		ID:     "gcp",
		Type:   TypePubSub,
		PubSub: &PubSubPublisherConfig{ProjectID: "test-project", Topic: "pubs"},
	}, nil)
	require.NoError(t, err)

	evt := sampleEvent()
	require.NoError(t, pub.Publish(ctx, evt))
	require.NoError(t, NewFanout([]Publisher{pub}).Close())

	msgs := server.Messages()
	require.Len(t, msgs, 1)
	var got Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, evt.Key, got.Key)
	assert.Equal(t, "scholar_profile", msgs[0].Attributes["source"])
}
