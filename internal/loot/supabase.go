package loot

import (
	"context"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"

	"github.com/ocx/raider/internal/probe"
)

// SupabaseSink inserts one row per loot record into a "loot" table via the
// Supabase PostgREST API.
type SupabaseSink struct {
	client *supabase.Client
}

// NewSupabaseSink builds a Supabase-backed sink from a project URL and
// service-role key.
func NewSupabaseSink(url, key string) (*SupabaseSink, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("loot: supabase url and service key must both be set")
	}
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("loot: new supabase client: %w", err)
	}
	return &SupabaseSink{client: client}, nil
}

func (s *SupabaseSink) Add(_ context.Context, l probe.Loot) error {
	data := make(map[string]string, len(l.Data))
	for _, kv := range l.Data {
		data[kv.Key] = kv.Value
	}

	row := map[string]interface{}{
		"plugin": l.Plugin,
		"target": l.Target,
		"data":   data,
	}

	var result []map[string]interface{}
	_, err := s.client.From("loot").Insert(row, false, "", "", "").ExecuteTo(&result)
	return err
}

func (s *SupabaseSink) Close() error { return nil }
