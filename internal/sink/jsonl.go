package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/PratikDhanave/group-message-collector/internal/models"
)

// JSONL appends one JSON object per line to a file.
type JSONL struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenJSONL opens path for appending, creating it and its directory if
// needed.
func OpenJSONL(path string) (*JSONL, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &JSONL{path: path, f: f}, nil
}

// Path returns the file being written.
func (j *JSONL) Path() string { return j.path }

// Write encodes rec and appends it with a single write call so a line is
// never interleaved with another.
func (j *JSONL) Write(_ context.Context, rec models.Record) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record %s: %w", rec.MessageID, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append record %s: %w", rec.MessageID, err)
	}
	return nil
}

func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
