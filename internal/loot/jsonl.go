package loot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ocx/raider/internal/probe"
)

// jsonlRecord is the on-disk shape of one loot line: Data flattened from
// the ordered []probe.KV slice into a plain JSON object, since JSON object
// key order is not guaranteed to round-trip but readability for a JSONL
// loot file matters more than preserving KV order on disk.
type jsonlRecord struct {
	Plugin string            `json:"plugin"`
	Target string            `json:"target"`
	Data   map[string]string `json:"data"`
}

// JSONLSink appends one JSON object per line to a file or, when path is
// "-", to stdout. Stdlib encoding/json is used deliberately: no
// third-party structured-serialization library in the example pack is a
// better fit for "one flat record per line" than the standard encoder.
type JSONLSink struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
	f   *os.File
}

// NewJSONLSink opens path for appending (creating it if needed) and
// returns a sink ready to receive loot. path == "-" writes to stdout.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == "-" || path == "" {
		return &JSONLSink{w: os.Stdout, enc: json.NewEncoder(os.Stdout)}, nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("loot: open %s: %w", path, err)
	}
	return &JSONLSink{w: f, enc: json.NewEncoder(f), f: f}, nil
}

func (s *JSONLSink) Add(_ context.Context, l probe.Loot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := jsonlRecord{Plugin: l.Plugin, Target: l.Target, Data: make(map[string]string, len(l.Data))}
	for _, kv := range l.Data {
		rec.Data[kv.Key] = kv.Value
	}
	return s.enc.Encode(rec)
}

func (s *JSONLSink) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}
