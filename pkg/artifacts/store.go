// Package artifacts implements the inter-stage file handoff: each
// pipeline stage writes its output twice, once under a run-stamped name
// for the audit trail and once under a fixed "latest" name that the
// next stage reads. The most recent latest file is always the next
// stage's input.
package artifacts

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/etlerrors"
	"github.com/estateops/vegasetl/pkg/models"
)

// Stage names used for artifact files.
const (
	StageRaw         = "raw"
	StageTransformed = "transformed"
)

// Store reads and writes stage artifacts under one working directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates the working directory if needed and returns a Store.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeInternal, "failed to create artifacts directory")
	}
	return &Store{dir: dir, logger: logger}, nil
}

// LatestPath returns the fixed-name path the next stage reads.
func (s *Store) LatestPath(stage string) string {
	return filepath.Join(s.dir, stage+"_latest.csv")
}

// runPath returns the run-stamped audit-trail path.
func (s *Store) runPath(stage, runID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", stage, runID))
}

// WriteRaw persists a raw-record batch. The header is the union of the
// record keys in first-seen order, since raw payloads vary per record.
func (s *Store) WriteRaw(stage, runID string, records []models.RawRecord) (string, error) {
	header := rawHeader(records)
	rows := make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(header))
		for j, col := range header {
			row[j] = rawCell(rec[col])
		}
		rows[i] = row
	}
	return s.write(stage, runID, header, rows)
}

// rawCell renders one raw field value as a CSV cell. Structured values
// are serialized as JSON so fields like listingSubType survive the
// round-trip and re-enter the transform through its string-variant path.
func rawCell(v interface{}) string {
	switch v.(type) {
	case nil:
		return ""
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
	rec := models.RawRecord{"v": v}
	s, _ := rec.String("v")
	return s
}

// WriteProperties persists a canonical batch in the fixed column order.
func (s *Store) WriteProperties(stage, runID string, props []*models.Property) (string, error) {
	header := models.Columns()
	rows := make([][]string, len(props))
	for i, p := range props {
		rows[i] = formatRow(p.Row())
	}
	return s.write(stage, runID, header, rows)
}

// ReadRaw reads the stage's latest artifact back into raw records. All
// cell values are strings; empty cells read back as absent fields.
func (s *Store) ReadRaw(stage string) ([]models.RawRecord, error) {
	path := s.LatestPath(stage)
	f, err := os.Open(path) //nolint:gosec // G304: path is derived from the configured artifacts dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeInputMissing, "input file does not exist: "+path)
		}
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeInputMissing, "failed to open input file")
	}
	defer f.Close() // Ignore close error

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to parse input file")
	}
	if len(rows) == 0 {
		return nil, etlerrors.New(etlerrors.ErrorTypeData, "input file has no header row")
	}

	header := rows[0]
	records := make([]models.RawRecord, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		rec := make(models.RawRecord, len(header))
		for i, col := range header {
			if i < len(cells) && cells[i] != "" {
				rec[col] = cells[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// write saves the rows under both the run-stamped and latest names.
func (s *Store) write(stage, runID string, header []string, rows [][]string) (string, error) {
	stamped := s.runPath(stage, runID)
	if err := writeCSV(stamped, header, rows); err != nil {
		return "", err
	}
	latest := s.LatestPath(stage)
	if err := writeCSV(latest, header, rows); err != nil {
		return "", err
	}

	s.logger.Info("stage artifact written",
		zap.String("stage", stage),
		zap.String("file", stamped),
		zap.String("latest", latest),
		zap.Int("rows", len(rows)))

	return latest, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is derived from the configured artifacts dir
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeInternal, "failed to create artifact file")
	}
	defer f.Close() // Ignore close error

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeInternal, "failed to write header")
	}
	if err := w.WriteAll(rows); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeInternal, "failed to write rows")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeInternal, "failed to flush artifact file")
	}
	return f.Sync()
}

// rawHeader is the union of record keys. Keys introduced by the same
// record are sorted so the header is deterministic across runs.
func rawHeader(records []models.RawRecord) []string {
	seen := make(map[string]struct{})
	header := make([]string, 0, 32)
	for _, rec := range records {
		fresh := make([]string, 0, len(rec))
		for key := range rec {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				fresh = append(fresh, key)
			}
		}
		sort.Strings(fresh)
		header = append(header, fresh...)
	}
	return header
}

// formatRow renders canonical row values as CSV cells. Nil values
// become empty cells, which the load engine converts to SQL NULL.
func formatRow(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = formatValue(v)
	}
	return out
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		// Date-precision values round-trip as plain dates.
		if t.Equal(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)) {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}
