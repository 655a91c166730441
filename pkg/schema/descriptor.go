// Package schema provisions the destination schema and table: an
// explicit column-to-type layout, a uniqueness constraint chosen by the
// load mode, and idempotent create-if-absent semantics.
package schema

import (
	"strconv"
	"strings"
	"time"

	"github.com/estateops/vegasetl/pkg/config"
)

// Descriptor names a destination table and owns its explicit
// column-to-type map. It is consulted, never mutated, by the load
// engine.
type Descriptor struct {
	Schema      string
	Table       string
	ColumnTypes map[string]string
}

// propertyColumnTypes is the typed layout for canonical property
// tables. Columns not listed default to TEXT.
var propertyColumnTypes = map[string]string{
	"zillow_property_id":      "BIGINT NOT NULL",
	"street_address":          "TEXT",
	"city":                    "TEXT",
	"state":                   "TEXT",
	"zip_code":                "TEXT",
	"vegas_district":          "TEXT",
	"latitude":                "DOUBLE PRECISION",
	"longitude":               "DOUBLE PRECISION",
	"livingArea":              "DOUBLE PRECISION",
	"Normalized_lotAreaValue": "DOUBLE PRECISION",
	"lotAreaUnit":             "TEXT",
	"bathrooms":               "DOUBLE PRECISION",
	"bedrooms":                "INTEGER",
	"price":                   "BIGINT NOT NULL",
	"rentZestimate":           "DOUBLE PRECISION",
	"zestimate":               "DOUBLE PRECISION",
	"propertyType":            "TEXT",
	"listingStatus":           "TEXT",
	"daysOnZillow":            "INTEGER",
	"date_listing":            "DATE",
	"datePriceChanged":        "TIMESTAMPTZ",
	"is_fsba":                 "BOOLEAN",
	"is_open_house":           "BOOLEAN",
	"processed_at":            "TIMESTAMPTZ NOT NULL",
	"etl_run_id":              "TEXT NOT NULL",
}

// NewPropertyDescriptor builds the descriptor for a canonical property
// table at <schema>.<table>.
func NewPropertyDescriptor(schemaName, table string) Descriptor {
	return Descriptor{
		Schema:      schemaName,
		Table:       table,
		ColumnTypes: propertyColumnTypes,
	}
}

// ColumnType returns the declared type for a column, defaulting to TEXT
// for columns outside the explicit map.
func (d Descriptor) ColumnType(column string) string {
	if t, ok := d.ColumnTypes[column]; ok {
		return t
	}
	return "TEXT"
}

// UniqueColumns returns the identity key the destination table enforces:
// the property id alone for snapshot tables, the (id, run) pair for
// history tables.
func (d Descriptor) UniqueColumns(mode config.LoadMode) []string {
	if mode == config.LoadModeTruncate {
		return []string{"zillow_property_id"}
	}
	return []string{"zillow_property_id", "etl_run_id"}
}

// QualifiedName renders the quoted <schema>.<table> name.
func (d Descriptor) QualifiedName() string {
	return QuoteIdent(d.Schema) + "." + QuoteIdent(d.Table)
}

// QuoteIdent safely quotes a single identifier segment for Postgres.
func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// QuoteIdents maps a list of identifiers to their quoted forms.
func QuoteIdents(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = QuoteIdent(id)
	}
	return out
}

// ParseValue converts a CSV cell into the Go value matching the
// column's declared type, so bulk transfer carries typed values instead
// of text. The caller is responsible for null handling; raw here is
// always a present, non-null cell.
func (d Descriptor) ParseValue(column, raw string) (interface{}, error) {
	declared := d.ColumnType(column)
	base := strings.Fields(declared)[0]

	switch base {
	case "BIGINT", "INTEGER":
		return strconv.ParseInt(raw, 10, 64)
	case "DOUBLE":
		return strconv.ParseFloat(raw, 64)
	case "BOOLEAN":
		return strconv.ParseBool(strings.ToLower(raw))
	case "TIMESTAMPTZ":
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t, nil
		}
		return time.Parse("2006-01-02", raw)
	case "DATE":
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t, nil
		}
		return time.Parse(time.RFC3339Nano, raw)
	default:
		return raw, nil
	}
}
