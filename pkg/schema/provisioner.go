package schema

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/config"
	"github.com/estateops/vegasetl/pkg/etlerrors"
)

// Executor is the slice of pgx used by the provisioner. Both pgx.Tx and
// pgxpool.Pool satisfy it, so provisioning can run inside the load
// transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Provisioner ensures the destination schema and table exist. Both
// operations are idempotent: a pre-existing table's structure is
// trusted as-is, with no column migration or type reconciliation.
type Provisioner struct {
	logger *zap.Logger
}

// NewProvisioner creates a Provisioner logging through the given logger.
func NewProvisioner(logger *zap.Logger) *Provisioner {
	return &Provisioner{logger: logger}
}

// Ensure creates the schema and table if absent and reports whether the
// table was created on this call.
func (p *Provisioner) Ensure(ctx context.Context, db Executor, desc Descriptor, columns []string, mode config.LoadMode) (bool, error) {
	if _, err := db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+QuoteIdent(desc.Schema)); err != nil {
		return false, etlerrors.Wrap(err, etlerrors.ErrorTypeQuery, "failed to ensure schema")
	}

	exists, err := p.tableExists(ctx, db, desc)
	if err != nil {
		return false, err
	}
	if exists {
		p.logger.Debug("table already exists, skipping creation",
			zap.String("schema", desc.Schema),
			zap.String("table", desc.Table))
		return false, nil
	}

	create := BuildCreateTable(desc, columns, mode)
	p.logger.Info("creating table",
		zap.String("schema", desc.Schema),
		zap.String("table", desc.Table),
		zap.Int("columns", len(columns)),
		zap.String("mode", string(mode)))

	if _, err := db.Exec(ctx, create); err != nil {
		return false, etlerrors.Wrap(err, etlerrors.ErrorTypeQuery, "failed to create table")
	}

	p.logger.Info("created table",
		zap.String("schema", desc.Schema),
		zap.String("table", desc.Table))

	return true, nil
}

// tableExists checks the catalog for the target table.
func (p *Provisioner) tableExists(ctx context.Context, db Executor, desc Descriptor) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`

	var exists bool
	if err := db.QueryRow(ctx, query, desc.Schema, desc.Table).Scan(&exists); err != nil {
		return false, etlerrors.Wrap(err, etlerrors.ErrorTypeQuery, "failed to check table existence")
	}
	return exists, nil
}

// BuildCreateTable renders the CREATE TABLE statement with the typed
// column layout and the uniqueness constraint for the load mode.
func BuildCreateTable(desc Descriptor, columns []string, mode config.LoadMode) string {
	defs := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		defs = append(defs, QuoteIdent(col)+" "+desc.ColumnType(col))
	}
	defs = append(defs, "UNIQUE ("+strings.Join(QuoteIdents(desc.UniqueColumns(mode)), ", ")+")")

	return "CREATE TABLE " + desc.QualifiedName() + " (" + strings.Join(defs, ", ") + ")"
}
