package loot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/ocx/raider/internal/probe"
)

// PubSubSink publishes one message per loot record to a Cloud Pub/Sub
// topic, grounded on internal/events.PubSubEventBus's
// NewClient/topic.Exists/CreateTopic pattern, simplified to a single
// publish per loot instead of a dual-bus CloudEvent. Add waits up to 10s
// for the publish result and returns its error.
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubSink connects to projectID and ensures topicID exists.
func NewPubSubSink(ctx context.Context, projectID, topicID string) (*PubSubSink, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loot: pubsub.NewClient: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("loot: topic.Exists: %w", err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicID)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("loot: CreateTopic: %w", err)
		}
	}

	return &PubSubSink{client: client, topic: topic}, nil
}

func (s *PubSubSink) Add(ctx context.Context, l probe.Loot) error {
	data := make(map[string]string, len(l.Data))
	for _, kv := range l.Data {
		data[kv.Key] = kv.Value
	}
	payload, err := json.Marshal(map[string]interface{}{
		"plugin": l.Plugin,
		"target": l.Target,
		"data":   data,
	})
	if err != nil {
		return fmt.Errorf("loot: marshal: %w", err)
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"plugin": l.Plugin, "target": l.Target},
	})

	publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = result.Get(publishCtx)
	return err
}

func (s *PubSubSink) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
