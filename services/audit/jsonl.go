package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/civinigrani/civigate/models"
)

// JSONLSink appends records as one JSON object per line. This is the default
// sink: append-only, local, and greppable.
type JSONLSink struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// NewJSONLSink opens (or creates) the JSONL file at path, creating parent
// directories as needed.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == "" {
		return nil, fmt.Errorf("audit jsonl path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &JSONLSink{path: path, f: f}, nil
}

// Append writes one record as a JSON line.
func (s *JSONLSink) Append(_ context.Context, rec *models.AuditRecord) error {
	if rec == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.f.Write(data)
	return err
}

// Recent reads the last n records from the file (linear scan; the trail is
// reviewed after the fact, not queried on the hot path).
func (s *JSONLSink) Recent(n int) ([]*models.AuditRecord, error) {
	s.mu.Lock()
	_ = s.f.Sync()
	s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []*models.AuditRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec := &models.AuditRecord{}
		if err := json.Unmarshal(line, rec); err != nil {
			continue // tolerate a torn final line
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	// newest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Close syncs and closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.f.Sync(); err != nil {
		return err
	}
	return s.f.Close()
}
