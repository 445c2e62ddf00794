package loot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/ocx/raider/internal/probe"
)

// PostgresSink persists loot rows via database/sql + lib/pq, the same
// driver the probes/postgres plugin uses to attempt logins -- here
// repurposed for persistence instead of probing, directly grounded on
// cmd/server/main.go's `_ "github.com/lib/pq"` import.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens dsn and ensures the loot table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("loot: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("loot: ping postgres: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS loot (
		id SERIAL PRIMARY KEY,
		plugin TEXT NOT NULL,
		target TEXT NOT NULL,
		data JSONB NOT NULL,
		found_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("loot: create table: %w", err)
	}

	return &PostgresSink{db: db}, nil
}

func (s *PostgresSink) Add(ctx context.Context, l probe.Loot) error {
	data := make(map[string]string, len(l.Data))
	for _, kv := range l.Data {
		data[kv.Key] = kv.Value
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("loot: marshal data: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO loot (plugin, target, data) VALUES ($1, $2, $3)`,
		l.Plugin, l.Target, payload)
	return err
}

func (s *PostgresSink) Close() error { return s.db.Close() }
