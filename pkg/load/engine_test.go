package load

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/config"
	"github.com/estateops/vegasetl/pkg/models"
	"github.com/estateops/vegasetl/pkg/schema"
)

func TestKeyIndexes(t *testing.T) {
	columns := []string{"a", "b", "c", "d"}

	assert.Equal(t, []int{0}, keyIndexes(columns, []string{"a"}))
	assert.Equal(t, []int{2, 0}, keyIndexes(columns, []string{"c", "a"}))
	assert.Empty(t, keyIndexes(columns, []string{"missing"}))
}

func TestDedupeRows(t *testing.T) {
	t.Run("last occurrence wins", func(t *testing.T) {
		rows := [][]interface{}{
			{int64(1), "first"},
			{int64(2), "other"},
			{int64(1), "second"},
		}

		out, removed := dedupeRows(rows, []int{0})

		require.Len(t, out, 2)
		assert.Equal(t, 1, removed)
		assert.Equal(t, "other", out[0][1])
		assert.Equal(t, "second", out[1][1])
	})

	t.Run("composite key", func(t *testing.T) {
		rows := [][]interface{}{
			{int64(1), "run_a", "old"},
			{int64(1), "run_b", "kept"},
			{int64(1), "run_a", "new"},
		}

		out, removed := dedupeRows(rows, []int{0, 1})

		require.Len(t, out, 2)
		assert.Equal(t, 1, removed)
		assert.Equal(t, "kept", out[0][2])
		assert.Equal(t, "new", out[1][2])
	})

	t.Run("no collisions", func(t *testing.T) {
		rows := [][]interface{}{
			{int64(1)},
			{int64(2)},
		}
		out, removed := dedupeRows(rows, []int{0})
		assert.Len(t, out, 2)
		assert.Zero(t, removed)
	})

	t.Run("no key columns", func(t *testing.T) {
		rows := [][]interface{}{
			{int64(1)},
			{int64(1)},
		}
		out, removed := dedupeRows(rows, nil)
		assert.Len(t, out, 2)
		assert.Zero(t, removed)
	})
}

func TestIsNullCell(t *testing.T) {
	for _, cell := range []string{"", "None", "NaN", "nan", "null", "<nil>", "  None  "} {
		assert.True(t, isNullCell(cell), "cell %q should be null", cell)
	}
	for _, cell := range []string{"0", "false", "Las Vegas", "none"} {
		assert.False(t, isNullCell(cell), "cell %q should not be null", cell)
	}
}

// testEngine connects to the database named by VEGASETL_TEST_DSN, or
// skips the test when the variable is unset.
func testEngine(t *testing.T) *Engine {
	t.Helper()

	dsn := os.Getenv("VEGASETL_TEST_DSN")
	if dsn == "" {
		t.Skip("VEGASETL_TEST_DSN not set, skipping database test")
	}

	engine, err := NewEngine(context.Background(), dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func testProperty(id int64, runID string) *models.Property {
	return &models.Property{
		ZillowPropertyID: id,
		VegasDistrict:    "Summerlin",
		LotAreaUnit:      "sqft",
		Price:            400000,
		ProcessedAt:      time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		ETLRunID:         runID,
	}
}

func TestEngineAppendIdempotence(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	desc := schema.NewPropertyDescriptor("vegasetl_test", "append_idempotence")
	defer func() {
		_, _ = engine.pool.Exec(ctx, "DROP TABLE IF EXISTS "+desc.QualifiedName())
	}()
	_, _ = engine.pool.Exec(ctx, "DROP TABLE IF EXISTS "+desc.QualifiedName())

	batch := []*models.Property{
		testProperty(1, "run_a"),
		testProperty(2, "run_a"),
	}

	first, err := engine.Load(ctx, desc, config.LoadModeAppend, batch)
	require.NoError(t, err)
	assert.True(t, first.TableCreated)
	assert.Equal(t, int64(2), first.Inserted)
	assert.Equal(t, int64(2), first.TotalRows)

	// Replaying the identical batch inserts nothing.
	second, err := engine.Load(ctx, desc, config.LoadModeAppend, batch)
	require.NoError(t, err)
	assert.False(t, second.TableCreated)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, int64(2), second.DuplicatesSkipped)
	assert.Equal(t, int64(2), second.TotalRows)

	// A new run id for the same property is a new history row.
	third, err := engine.Load(ctx, desc, config.LoadModeAppend, []*models.Property{
		testProperty(1, "run_b"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), third.Inserted)
	assert.Equal(t, int64(3), third.TotalRows)
}

func TestEngineTruncateReplaces(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	desc := schema.NewPropertyDescriptor("vegasetl_test", "truncate_replaces")
	defer func() {
		_, _ = engine.pool.Exec(ctx, "DROP TABLE IF EXISTS "+desc.QualifiedName())
	}()
	_, _ = engine.pool.Exec(ctx, "DROP TABLE IF EXISTS "+desc.QualifiedName())

	_, err := engine.Load(ctx, desc, config.LoadModeTruncate, []*models.Property{
		testProperty(1, "run_a"),
		testProperty(2, "run_a"),
	})
	require.NoError(t, err)

	report, err := engine.Load(ctx, desc, config.LoadModeTruncate, []*models.Property{
		testProperty(3, "run_b"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Inserted)
	assert.Equal(t, int64(1), report.TotalRows)
}

func TestEngineRollbackLeavesTableUntouched(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	desc := schema.NewPropertyDescriptor("vegasetl_test", "rollback_atomicity")
	drop := func() {
		_, _ = engine.pool.Exec(ctx, "DROP TABLE IF EXISTS "+desc.QualifiedName())
	}
	drop()
	defer drop()

	_, err := engine.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema.QuoteIdent(desc.Schema))
	require.NoError(t, err)

	// A table without the identity constraint makes the merge statement
	// fail after the batch has been staged, forcing a rollback.
	defs := make([]string, 0, len(models.Columns()))
	for _, col := range models.Columns() {
		defs = append(defs, schema.QuoteIdent(col)+" "+desc.ColumnType(col))
	}
	_, err = engine.pool.Exec(ctx, "CREATE TABLE "+desc.QualifiedName()+" ("+strings.Join(defs, ", ")+")")
	require.NoError(t, err)

	seed := testProperty(1, "run_a")
	insert := "INSERT INTO " + desc.QualifiedName() +
		` ("zillow_property_id", "vegas_district", "lotAreaUnit", "price", "processed_at", "etl_run_id")` +
		" VALUES ($1, $2, $3, $4, $5, $6)"
	_, err = engine.pool.Exec(ctx, insert,
		seed.ZillowPropertyID, seed.VegasDistrict, seed.LotAreaUnit, seed.Price, seed.ProcessedAt, seed.ETLRunID)
	require.NoError(t, err)

	_, err = engine.Load(ctx, desc, config.LoadModeAppend, []*models.Property{
		testProperty(2, "run_b"),
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, engine.pool.QueryRow(ctx, "SELECT count(*) FROM "+desc.QualifiedName()).Scan(&count))
	assert.Equal(t, int64(1), count)
}

func TestEngineBatchDuplicates(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	desc := schema.NewPropertyDescriptor("vegasetl_test", "batch_duplicates")
	defer func() {
		_, _ = engine.pool.Exec(ctx, "DROP TABLE IF EXISTS "+desc.QualifiedName())
	}()
	_, _ = engine.pool.Exec(ctx, "DROP TABLE IF EXISTS "+desc.QualifiedName())

	early := testProperty(1, "run_a")
	late := testProperty(1, "run_a")
	late.Price = 425000

	report, err := engine.Load(ctx, desc, config.LoadModeAppend, []*models.Property{early, late})
	require.NoError(t, err)
	assert.Equal(t, 1, report.BatchDuplicates)
	assert.Equal(t, int64(1), report.Inserted)

	var price int64
	err = engine.pool.QueryRow(ctx, "SELECT price FROM "+desc.QualifiedName()).Scan(&price)
	require.NoError(t, err)
	assert.Equal(t, int64(425000), price)
}
