package audit

import (
	"context"
	"sync"
	"time"
)

// MemorySink is an in-memory Sink for tests. Append-only like the real one.
type MemorySink struct {
	mu      sync.Mutex
	records []*Record
	failErr error
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// FailWith makes subsequent writes return err. Used to exercise the
// audit-failure-is-a-warning path.
func (m *MemorySink) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Write appends one record.
func (m *MemorySink) Write(ctx context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failErr != nil {
		return m.failErr
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.RedactedPreview = Preview(record.RedactedPreview)
	record.ID = int64(len(m.records) + 1)
	m.records = append(m.records, record)
	return nil
}

// Records returns a snapshot of everything written so far.
func (m *MemorySink) Records() []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, len(m.records))
	copy(out, m.records)
	return out
}

// Close is a no-op for the in-memory sink.
func (m *MemorySink) Close() error {
	return nil
}
