//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkacontainer "github.com/testcontainers/testcontainers-go/modules/kafka"
)

func TestKafkaPublisherWritesEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	kc, err := kafkacontainer.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kc.Terminate(context.Background()) })

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	topic := "activities.events"
	conn, err := kafka.Dial("tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
	conn.Close()

	pub := NewKafkaPublisher(brokers, topic)
	t.Cleanup(func() { _ = pub.Close() })

	activityID := uuid.New()
	evt := New(AttendanceJoined, activityID.String(), uuid.New(), map[string]string{"activity_id": activityID.String()})
	require.NoError(t, pub.Publish(ctx, evt))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, activityID.String(), string(msg.Key))

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, evt.ID, got.ID)
	assert.Equal(t, AttendanceJoined, got.Type)
}
