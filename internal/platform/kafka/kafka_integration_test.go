//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"proconnect/internal/platform/kafka"
	"proconnect/pkg/testutil/containers"
)

type testEvent struct {
	Action       string `json:"action"`
	ConnectionID int64  `json:"connection_id"`
}

func TestProducerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	broker := containers.GetManager().GetRedpanda(t).Broker
	topic := "proconnect.connection.audit.test"

	producer, err := kafka.NewProducer([]string{broker}, topic)
	require.NoError(t, err)
	defer producer.Close()

	require.NoError(t, producer.EnsureTopic(ctx, 1, 1))
	// Second call must be a no-op, not an error.
	require.NoError(t, producer.EnsureTopic(ctx, 1, 1))

	events := []testEvent{
		{Action: "connection_requested", ConnectionID: 42},
		{Action: "connection_accepted", ConnectionID: 42},
		{Action: "connection_removed", ConnectionID: 42},
	}
	for _, e := range events {
		require.NoError(t, producer.Publish(ctx, "42", e))
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	deadline, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var got []testEvent
	for len(got) < len(events) {
		fetches := consumer.PollFetches(deadline)
		require.NoError(t, fetches.Err())
		fetches.EachRecord(func(record *kgo.Record) {
			require.Equal(t, "42", string(record.Key))
			var e testEvent
			require.NoError(t, json.Unmarshal(record.Value, &e))
			got = append(got, e)
		})
	}

	// Same key, same partition: the trail arrives in publish order.
	require.Equal(t, events, got)
}
