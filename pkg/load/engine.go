// Package load implements the idempotent load engine. A batch is staged
// into a transaction-scoped temporary table, deduplicated against the
// permanent table's identity key, and committed atomically; truncate
// mode replaces the whole table instead. Any error after the
// transaction begins rolls everything back.
package load

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/config"
	"github.com/estateops/vegasetl/pkg/etlerrors"
	"github.com/estateops/vegasetl/pkg/models"
	"github.com/estateops/vegasetl/pkg/schema"
)

// Report summarizes one load invocation.
type Report struct {
	// SourceRows is the size of the incoming batch
	SourceRows int
	// BatchDuplicates counts rows removed by within-batch deduplication
	BatchDuplicates int
	// Staged counts rows bulk-copied into the staging area
	Staged int64
	// Inserted counts rows that reached the permanent table
	Inserted int64
	// DuplicatesSkipped counts rows rejected by the uniqueness constraint
	DuplicatesSkipped int64
	// TotalRows is the permanent table's row count after commit
	TotalRows int64
	// TableCreated reports whether this call provisioned the table
	TableCreated bool
}

// Engine persists canonical property batches into Postgres.
type Engine struct {
	pool        *pgxpool.Pool
	provisioner *schema.Provisioner
	logger      *zap.Logger
}

// NewEngine connects to the destination database and returns an Engine.
func NewEngine(ctx context.Context, dsn string, logger *zap.Logger) (*Engine, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to reach database")
	}
	return &Engine{
		pool:        pool,
		provisioner: schema.NewProvisioner(logger),
		logger:      logger,
	}, nil
}

// Close releases the connection pool.
func (e *Engine) Close() {
	e.pool.Close()
}

// Load persists a canonical batch into <schema>.<table> under the given
// mode. The whole operation — schema ensure, truncate or stage-and-merge,
// and commit — is one transaction; on any error the table is left
// exactly as it was.
func (e *Engine) Load(ctx context.Context, desc schema.Descriptor, mode config.LoadMode, props []*models.Property) (*Report, error) {
	columns := models.Columns()
	rows := make([][]interface{}, len(props))
	for i, p := range props {
		rows[i] = p.Row()
	}
	return e.loadRows(ctx, desc, mode, columns, rows)
}

func (e *Engine) loadRows(ctx context.Context, desc schema.Descriptor, mode config.LoadMode, columns []string, rows [][]interface{}) (*Report, error) {
	report := &Report{SourceRows: len(rows)}

	// Within-batch collisions on the identity key are resolved before
	// staging: last occurrence in source order wins.
	rows, report.BatchDuplicates = dedupeRows(rows, keyIndexes(columns, desc.UniqueColumns(mode)))

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeConnection, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	report.TableCreated, err = e.provisioner.Ensure(ctx, tx, desc, columns, mode)
	if err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeLoad, "failed to ensure schema and table")
	}

	switch mode {
	case config.LoadModeTruncate:
		err = e.truncateAndInsert(ctx, tx, desc, columns, rows, report)
	default:
		err = e.stageAndMerge(ctx, tx, desc, mode, columns, rows, report)
	}
	if err != nil {
		return nil, err
	}

	totalQuery := "SELECT count(*) FROM " + desc.QualifiedName()
	if err := tx.QueryRow(ctx, totalQuery).Scan(&report.TotalRows); err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeQuery, "failed to count resulting rows")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, etlerrors.Wrap(err, etlerrors.ErrorTypeLoad, "failed to commit load transaction")
	}

	e.logger.Info("load completed",
		zap.String("table", desc.Schema+"."+desc.Table),
		zap.String("mode", string(mode)),
		zap.Int("source_rows", report.SourceRows),
		zap.Int64("inserted", report.Inserted),
		zap.Int64("duplicates_skipped", report.DuplicatesSkipped),
		zap.Int64("total_rows", report.TotalRows))

	return report, nil
}

// truncateAndInsert replaces the whole table with the incoming batch
// (current-snapshot semantics).
func (e *Engine) truncateAndInsert(ctx context.Context, tx pgx.Tx, desc schema.Descriptor, columns []string, rows [][]interface{}, report *Report) error {
	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+desc.QualifiedName()); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeLoad, "failed to truncate table")
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{desc.Schema, desc.Table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeLoad, "failed to bulk insert batch")
	}

	report.Staged = copied
	report.Inserted = copied
	return nil
}

// stageAndMerge bulk-loads the batch into a transaction-scoped staging
// table, then inserts into the permanent table while silently skipping
// rows that collide on the identity key. The skip is the idempotence
// guarantee, not an error.
func (e *Engine) stageAndMerge(ctx context.Context, tx pgx.Tx, desc schema.Descriptor, mode config.LoadMode, columns []string, rows [][]interface{}, report *Report) error {
	staging := "staging_" + desc.Table
	quotedCols := strings.Join(schema.QuoteIdents(columns), ", ")

	create := "CREATE TEMP TABLE " + schema.QuoteIdent(staging) +
		" ON COMMIT DROP AS SELECT " + quotedCols +
		" FROM " + desc.QualifiedName() + " WHERE false"
	if _, err := tx.Exec(ctx, create); err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeLoad, "failed to create staging table")
	}

	staged, err := tx.CopyFrom(ctx, pgx.Identifier{staging}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeLoad, "failed to copy batch into staging table")
	}
	report.Staged = staged

	keys := strings.Join(schema.QuoteIdents(desc.UniqueColumns(mode)), ", ")
	merge := "INSERT INTO " + desc.QualifiedName() + " (" + quotedCols + ")" +
		" SELECT " + quotedCols + " FROM " + schema.QuoteIdent(staging) +
		" ON CONFLICT (" + keys + ") DO NOTHING"

	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return etlerrors.Wrap(err, etlerrors.ErrorTypeLoad, "failed to merge staging table")
	}

	report.Inserted = tag.RowsAffected()
	report.DuplicatesSkipped = staged - report.Inserted
	return nil
}

// keyIndexes maps the identity key columns to their positions in the
// column list.
func keyIndexes(columns, keys []string) []int {
	idx := make([]int, 0, len(keys))
	for _, key := range keys {
		for i, col := range columns {
			if col == key {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

// dedupeRows removes within-batch identity-key collisions, keeping the
// last occurrence in source order and preserving the order of survivors.
func dedupeRows(rows [][]interface{}, keyIdx []int) ([][]interface{}, int) {
	if len(keyIdx) == 0 || len(rows) < 2 {
		return rows, 0
	}

	last := make(map[string]int, len(rows))
	for i, row := range rows {
		last[rowKey(row, keyIdx)] = i
	}
	if len(last) == len(rows) {
		return rows, 0
	}

	out := make([][]interface{}, 0, len(last))
	for i, row := range rows {
		if last[rowKey(row, keyIdx)] == i {
			out = append(out, row)
		}
	}
	return out, len(rows) - len(out)
}

func rowKey(row []interface{}, keyIdx []int) string {
	var b strings.Builder
	for _, i := range keyIdx {
		if i < len(row) {
			b.WriteString(formatKeyPart(row[i]))
		}
		b.WriteByte('\x1f')
	}
	return b.String()
}

func formatKeyPart(v interface{}) string {
	rec := models.RawRecord{"v": v}
	s, _ := rec.String("v")
	return s
}
