package pubsub_test

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	publisher "github.com/JakeFAU/normattiva-catalog/internal/publisher/pubsub"
)

func newFakeClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublisherPublishesJSON(t *testing.T) {
	ctx := context.Background()
	client, srv := newFakeClient(t)
	_, err := client.CreateTopic(ctx, "articles-ready")
	require.NoError(t, err)

	pub := publisher.New(client)
	id, err := pub.Publish(ctx, "articles-ready", map[string]any{"document_id": 42})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got map[string]int
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, 42, got["document_id"])
}

func TestPublisherMissingTopic(t *testing.T) {
	ctx := context.Background()
	client, _ := newFakeClient(t)

	pub := publisher.New(client)
	_, err := pub.Publish(ctx, "missing", "payload")
	assert.Error(t, err)
	require.NoError(t, pub.Close())
}

func TestPublisherRejectsUnmarshalablePayload(t *testing.T) {
	client, _ := newFakeClient(t)
	pub := publisher.New(client)

	_, err := pub.Publish(context.Background(), "articles-ready", make(chan int))
	assert.Error(t, err)
}
