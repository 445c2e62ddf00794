package loot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/spanner"

	"github.com/ocx/raider/internal/probe"
)

// SpannerSink writes one Loot mutation per row to a Cloud Spanner
// database, grounded on internal/reputation.SpannerWallet's
// projects/%s/instances/%s/databases/%s dial path and
// spanner.Insert + client.Apply mutation shape.
type SpannerSink struct {
	client *spanner.Client
}

// NewSpannerSink dials the Spanner database identified by project/instance/db.
func NewSpannerSink(ctx context.Context, project, instance, db string) (*SpannerSink, error) {
	dbPath := fmt.Sprintf("projects/%s/instances/%s/databases/%s", project, instance, db)
	client, err := spanner.NewClient(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("loot: spanner.NewClient: %w", err)
	}
	return &SpannerSink{client: client}, nil
}

func (s *SpannerSink) Add(ctx context.Context, l probe.Loot) error {
	data := make(map[string]string, len(l.Data))
	for _, kv := range l.Data {
		data[kv.Key] = kv.Value
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("loot: marshal data: %w", err)
	}

	mutation := spanner.Insert("Loot",
		[]string{"Plugin", "Target", "Data", "FoundAt"},
		[]interface{}{l.Plugin, l.Target, string(payload), time.Now()})

	_, err = s.client.Apply(ctx, []*spanner.Mutation{mutation})
	return err
}

func (s *SpannerSink) Close() error {
	s.client.Close()
	return nil
}
