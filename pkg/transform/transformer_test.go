package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/models"
)

func newTestTransformer(now time.Time) *Transformer {
	tr := NewTransformer(zap.NewNop())
	tr.now = func() time.Time { return now }
	return tr
}

func fullRecord() models.RawRecord {
	return models.RawRecord{
		"zpid":             float64(12345678),
		"address":          "2 Green Valley Pkwy, Henderson, NV 89014",
		"price":            float64(450000),
		"latitude":         36.03,
		"longitude":        -115.08,
		"livingArea":       float64(2100),
		"lotAreaValue":     0.25,
		"lotAreaUnit":      "acres",
		"bathrooms":        2.5,
		"bedrooms":         float64(4),
		"rentZestimate":    float64(2400),
		"zestimate":        float64(460000),
		"propertyType":     "SINGLE_FAMILY",
		"listingStatus":    "FOR_SALE",
		"daysOnZillow":     float64(12),
		"datePriceChanged": float64(1704067200000),
		"listingSubType":   "{'is_FSBA': True}",
		"imgSrc":           "https://example.com/photo.jpg",
		"detailUrl":        "https://example.com/detail",
		"hasImage":         true,
	}
}

func TestTransformBatch(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("full record", func(t *testing.T) {
		tr := newTestTransformer(now)
		result := tr.TransformBatch([]models.RawRecord{fullRecord()})

		require.Len(t, result.Properties, 1)
		assert.Equal(t, 0, result.Dropped)
		assert.Equal(t, "run_20240315T120000Z", result.RunID)

		p := result.Properties[0]
		assert.Equal(t, int64(12345678), p.ZillowPropertyID)
		assert.Equal(t, int64(450000), p.Price)
		require.NotNil(t, p.StreetAddress)
		assert.Equal(t, "2 Green Valley Pkwy", *p.StreetAddress)
		require.NotNil(t, p.City)
		assert.Equal(t, "Henderson", *p.City)
		assert.Equal(t, "Green Valley", p.VegasDistrict)
		assert.True(t, p.IsFSBA)
		assert.False(t, p.IsOpenHouse)
		require.NotNil(t, p.LotAreaValue)
		assert.InDelta(t, 10890.0, *p.LotAreaValue, 1e-9)
		assert.Equal(t, "sqft", p.LotAreaUnit)
		require.NotNil(t, p.DatePriceChanged)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *p.DatePriceChanged)
		require.NotNil(t, p.DateListing)
		assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), *p.DateListing)
		assert.Equal(t, now, p.ProcessedAt)
		assert.Equal(t, result.RunID, p.ETLRunID)
	})

	t.Run("quality filter drops records missing id or price", func(t *testing.T) {
		tr := newTestTransformer(now)
		noID := fullRecord()
		delete(noID, "zpid")
		noPrice := fullRecord()
		noPrice["price"] = "None"

		result := tr.TransformBatch([]models.RawRecord{fullRecord(), noID, noPrice})

		assert.Len(t, result.Properties, 1)
		assert.Equal(t, 2, result.Dropped)
	})

	t.Run("minimal record gets defaults", func(t *testing.T) {
		tr := newTestTransformer(now)
		result := tr.TransformBatch([]models.RawRecord{{
			"zpid":  "99",
			"price": "120000",
		}})

		require.Len(t, result.Properties, 1)
		p := result.Properties[0]
		assert.Nil(t, p.StreetAddress)
		assert.Nil(t, p.City)
		assert.Equal(t, "Las Vegas", p.VegasDistrict)
		assert.False(t, p.IsFSBA)
		assert.False(t, p.IsOpenHouse)
		assert.Nil(t, p.LotAreaValue)
		assert.Nil(t, p.DatePriceChanged)
		assert.Nil(t, p.DateListing)
	})

	t.Run("stamps are uniform across the batch", func(t *testing.T) {
		tr := newTestTransformer(now)
		a := fullRecord()
		b := fullRecord()
		b["zpid"] = float64(87654321)

		result := tr.TransformBatch([]models.RawRecord{a, b})

		require.Len(t, result.Properties, 2)
		assert.Equal(t, result.Properties[0].ProcessedAt, result.Properties[1].ProcessedAt)
		assert.Equal(t, result.Properties[0].ETLRunID, result.Properties[1].ETLRunID)
	})

	t.Run("empty batch", func(t *testing.T) {
		tr := newTestTransformer(now)
		result := tr.TransformBatch(nil)
		assert.Empty(t, result.Properties)
		assert.Equal(t, 0, result.Dropped)
	})
}

func TestRunID(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "run_20240315T120000Z", RunID(ts))

	local := ts.In(time.FixedZone("PST", -8*3600))
	assert.Equal(t, RunID(ts), RunID(local))
}
