package load

import (
	"context"
	"encoding/csv"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/config"
	"github.com/estateops/vegasetl/pkg/etlerrors"
	"github.com/estateops/vegasetl/pkg/schema"
)

// LoadFile persists a canonical batch read from a header-bearing
// delimited-text file — the inter-stage wire format. Missing-value
// sentinels in cells become true relational nulls before bulk transfer;
// present cells are parsed into the column's declared type.
func (e *Engine) LoadFile(ctx context.Context, desc schema.Descriptor, mode config.LoadMode, path string) (*Report, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from pipeline configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeInputMissing, "input file does not exist: "+path)
		}
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeInputMissing, "failed to open input file")
	}
	defer f.Close() // Ignore close error

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData, "failed to parse input file")
	}
	if len(records) == 0 {
		return nil, etlerrors.New(etlerrors.ErrorTypeData, "input file has no header row")
	}

	columns := records[0]
	rows := make([][]interface{}, 0, len(records)-1)
	for lineNo, cells := range records[1:] {
		row := make([]interface{}, len(columns))
		for i, cell := range cells {
			if i >= len(columns) {
				break
			}
			if isNullCell(cell) {
				row[i] = nil
				continue
			}
			v, err := desc.ParseValue(columns[i], cell)
			if err != nil {
				return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeData,
					"malformed cell in canonical input").
					WithDetail("column", columns[i]).
					WithDetail("line", lineNo+2)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	e.logger.Info("loading file",
		zap.String("file", path),
		zap.Int("rows", len(rows)),
		zap.String("table", desc.Schema+"."+desc.Table),
		zap.String("mode", string(mode)))

	return e.loadRows(ctx, desc, mode, columns, rows)
}

// isNullCell reports whether a CSV cell carries a semantically absent
// value that must be written as SQL NULL rather than a string literal.
func isNullCell(cell string) bool {
	switch strings.TrimSpace(cell) {
	case "", "None", "NaN", "nan", "null", "<nil>":
		return true
	}
	return false
}
