package audit

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPreview(t *testing.T) {
	t.Run("ShortContentUnchanged", func(t *testing.T) {
		if got := Preview("short"); got != "short" {
			t.Errorf("Unexpected preview: %q", got)
		}
	})

	t.Run("LongContentTruncated", func(t *testing.T) {
		long := strings.Repeat("x", 500)
		got := Preview(long)
		if len(got) != PreviewLimit {
			t.Errorf("Expected %d chars, got %d", PreviewLimit, len(got))
		}
	})

	t.Run("MultiByteSafe", func(t *testing.T) {
		long := strings.Repeat("é", 300)
		got := Preview(long)
		if utf8Invalid(got) {
			t.Error("Preview split a multi-byte character")
		}
		if len([]rune(got)) != PreviewLimit {
			t.Errorf("Expected %d runes, got %d", PreviewLimit, len([]rune(got)))
		}
	})
}

func utf8Invalid(s string) bool {
	for _, r := range s {
		if r == '�' {
			return true
		}
	}
	return false
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()

	t.Run("WriteAppendsAndBoundsPreview", func(t *testing.T) {
		sink := NewMemorySink()
		record := &Record{
			OrgID:           "org-1",
			PolicyID:        "pol-1",
			DataType:        "prompt",
			RedactionCount:  2,
			PatternsMatched: []string{"email", "ssn"},
			OriginalHash:    "abc123",
			RedactedPreview: strings.Repeat("r", 400),
		}
		if err := sink.Write(ctx, record); err != nil {
			t.Fatalf("Write failed: %v", err)
		}

		records := sink.Records()
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}
		if len(records[0].RedactedPreview) != PreviewLimit {
			t.Errorf("Preview not bounded: %d chars", len(records[0].RedactedPreview))
		}
		if records[0].CreatedAt.IsZero() {
			t.Error("CreatedAt not set")
		}
	})

	t.Run("FailWith", func(t *testing.T) {
		sink := NewMemorySink()
		wantErr := errors.New("sink down")
		sink.FailWith(wantErr)
		if err := sink.Write(ctx, &Record{}); !errors.Is(err, wantErr) {
			t.Fatalf("Expected injected error, got %v", err)
		}
	})
}

// memoryReader adapts MemorySink for exporter tests.
type memoryReader struct {
	sink *MemorySink
}

func (r *memoryReader) ReadSince(ctx context.Context, since time.Time, limit int) ([]*Record, error) {
	var out []*Record
	for _, record := range r.sink.Records() {
		if !record.CreatedAt.Before(since) {
			out = append(out, record)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func TestExporter(t *testing.T) {
	ctx := context.Background()
	sink := NewMemorySink()
	for i := 0; i < 3; i++ {
		record := &Record{
			OrgID:           "org-1",
			PolicyID:        "pol-1",
			DataType:        "prompt",
			RedactionCount:  i,
			PatternsMatched: []string{"email"},
			OriginalHash:    "deadbeef",
			RedactedPreview: "[EMAIL_REDACTED]",
		}
		if err := sink.Write(ctx, record); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	exporter := NewExporter(&memoryReader{sink: sink}, zap.NewNop())

	t.Run("CSV", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.csv")
		n, err := exporter.Export(ctx, path, time.Time{}, 0)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if n != 3 {
			t.Errorf("Expected 3 rows, got %d", n)
		}

		file, err := os.Open(path)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer file.Close()

		lines, err := csv.NewReader(file).ReadAll()
		if err != nil {
			t.Fatalf("CSV read failed: %v", err)
		}
		if len(lines) != 4 {
			t.Errorf("Expected header + 3 rows, got %d lines", len(lines))
		}
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.json")
		n, err := exporter.Export(ctx, path, time.Time{}, 0)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if n != 3 {
			t.Errorf("Expected 3 rows, got %d", n)
		}
	})

	t.Run("Parquet", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.parquet")
		n, err := exporter.Export(ctx, path, time.Time{}, 0)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if n != 3 {
			t.Errorf("Expected 3 rows, got %d", n)
		}
	})

	t.Run("SinceFilters", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.csv")
		n, err := exporter.Export(ctx, path, time.Now().Add(time.Hour), 0)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}
		if n != 0 {
			t.Errorf("Expected 0 rows, got %d", n)
		}
	})
}

func TestDetectFileFormat(t *testing.T) {
	cases := map[string]FileFormat{
		"out.parquet": FormatParquet,
		"out.json":    FormatJSON,
		"out.csv":     FormatCSV,
		"out.txt":     FormatCSV,
	}
	for name, want := range cases {
		if got := DetectFileFormat(name); got != want {
			t.Errorf("%s: expected %s, got %s", name, want, got)
		}
	}
}
