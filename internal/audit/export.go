package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

// FileFormat identifies a supported export format.
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatJSON    FileFormat = "json"
	FormatParquet FileFormat = "parquet"
)

// DetectFileFormat guesses the export format from a filename extension.
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json"):
		return FormatJSON
	default:
		return FormatCSV
	}
}

// exportRow is the flat on-disk shape of an audit record.
type exportRow struct {
	ID              int64  `csv:"id" parquet:"id" json:"id"`
	OrgID           string `csv:"org_id" parquet:"org_id" json:"org_id"`
	PolicyID        string `csv:"policy_id" parquet:"policy_id" json:"policy_id"`
	AgentID         string `csv:"agent_id" parquet:"agent_id" json:"agent_id"`
	RunID           string `csv:"run_id" parquet:"run_id" json:"run_id"`
	DataType        string `csv:"data_type" parquet:"data_type" json:"data_type"`
	RedactionCount  int    `csv:"redaction_count" parquet:"redaction_count" json:"redaction_count"`
	PatternsMatched string `csv:"patterns_matched" parquet:"patterns_matched" json:"patterns_matched"`
	OriginalHash    string `csv:"original_hash" parquet:"original_hash" json:"original_hash"`
	RedactedPreview string `csv:"redacted_preview" parquet:"redacted_preview" json:"redacted_preview"`
	CreatedAt       string `csv:"created_at" parquet:"created_at" json:"created_at"`
}

// Reader is the subset of the sink the exporter needs.
type Reader interface {
	ReadSince(ctx context.Context, since time.Time, limit int) ([]*Record, error)
}

// Exporter writes audit records out to Parquet, CSV, or JSON files for
// offline analysis. It only ever reads; retention stays with the database.
type Exporter struct {
	reader Reader
	logger *zap.Logger
}

// NewExporter creates an audit exporter.
func NewExporter(reader Reader, logger *zap.Logger) *Exporter {
	return &Exporter{reader: reader, logger: logger}
}

// Export writes records created since the given time to outputPath, choosing
// the format from the file extension. Returns the number of rows written.
func (e *Exporter) Export(ctx context.Context, outputPath string, since time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 10000
	}

	records, err := e.reader.ReadSince(ctx, since, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to read audit records: %w", err)
	}

	rows := make([]exportRow, len(records))
	for i, record := range records {
		rows[i] = exportRow{
			ID:              record.ID,
			OrgID:           record.OrgID,
			PolicyID:        record.PolicyID,
			AgentID:         record.AgentID,
			RunID:           record.RunID,
			DataType:        record.DataType,
			RedactionCount:  record.RedactionCount,
			PatternsMatched: strings.Join(record.PatternsMatched, ","),
			OriginalHash:    record.OriginalHash,
			RedactedPreview: record.RedactedPreview,
			CreatedAt:       record.CreatedAt.UTC().Format(time.RFC3339),
		}
	}

	format := DetectFileFormat(outputPath)
	e.logger.Info("Exporting audit records",
		zap.String("output", outputPath),
		zap.String("format", string(format)),
		zap.Int("rows", len(rows)))

	file, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	switch format {
	case FormatParquet:
		err = writeParquet(file, rows)
	case FormatJSON:
		err = json.NewEncoder(file).Encode(rows)
	default:
		err = writeCSV(file, rows)
	}
	if err != nil {
		return 0, fmt.Errorf("%s export failed: %w", format, err)
	}

	return len(rows), nil
}

func writeParquet(file *os.File, rows []exportRow) error {
	writer := parquet.NewWriter(file)
	for i := range rows {
		if err := writer.Write(&rows[i]); err != nil {
			return err
		}
	}
	return writer.Close()
}

func writeCSV(file *os.File, rows []exportRow) error {
	writer := csv.NewWriter(file)

	header := []string{
		"id", "org_id", "policy_id", "agent_id", "run_id", "data_type",
		"redaction_count", "patterns_matched", "original_hash", "redacted_preview", "created_at",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		fields := []string{
			strconv.FormatInt(row.ID, 10),
			row.OrgID,
			row.PolicyID,
			row.AgentID,
			row.RunID,
			row.DataType,
			strconv.Itoa(row.RedactionCount),
			row.PatternsMatched,
			row.OriginalHash,
			row.RedactedPreview,
			row.CreatedAt,
		}
		if err := writer.Write(fields); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
