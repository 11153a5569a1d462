// Package bootstrap rebuilds dedup state from the JSONL log written by
// previous runs.
package bootstrap

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/PratikDhanave/group-message-collector/internal/models"
)

// Result counts what a load saw. Skipped covers lines that were not valid
// records; blank lines are not counted at all.
type Result struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
}

// Load streams newline-delimited records from r into fn. Bad lines are
// skipped; only a read error stops the load.
func Load(r io.Reader, fn func(models.Record)) (Result, error) {
	var res Result
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if rec, ok := parseLine(line); ok {
				fn(rec)
				res.Loaded++
			} else if len(bytes.TrimSpace(line)) > 0 {
				res.Skipped++
			}
		}
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("read history: %w", err)
		}
	}
}

// LoadFile is Load over the file at path. A missing file is an empty
// history.
func LoadFile(path string, fn func(models.Record)) (Result, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Result{}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("open history %s: %w", path, err)
	}
	defer f.Close()

	return Load(f, fn)
}

func parseLine(line []byte) (models.Record, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return models.Record{}, false
	}
	var rec models.Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return models.Record{}, false
	}
	if rec.MessageID == "" {
		return models.Record{}, false
	}
	return rec, true
}
