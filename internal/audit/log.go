package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record is one append-only audit entry. Records are written once and never
// mutated or deleted.
type Record struct {
	Timestamp float64         `json:"timestamp"`
	ClientIP  string          `json:"client_ip"`
	TokenID   string          `json:"token_id"`
	Payload   json.RawMessage `json:"payload"`
}

// Log appends action records to a JSONL file, one JSON object per line.
type Log struct {
	mu   sync.Mutex
	path string
}

func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append writes one record. The file is opened in append mode per write so
// an external rotation never strands a handle.
func (l *Log) Append(rec Record) error {
	if rec.Timestamp == 0 {
		rec.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}
