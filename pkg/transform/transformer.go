// Package transform implements the record normalization engine: address
// parsing, field-level conversions, derived-field computation, district
// classification, and projection of heterogeneous raw records onto the
// canonical property schema.
package transform

import (
	"time"

	"go.uber.org/zap"

	"github.com/estateops/vegasetl/pkg/models"
)

// raw field names referenced during transformation
const (
	fieldZpid             = "zpid"
	fieldAddress          = "address"
	fieldListingSubType   = "listingSubType"
	fieldDatePriceChanged = "datePriceChanged"
	fieldDaysOnZillow     = "daysOnZillow"
	fieldLotAreaValue     = "lotAreaValue"
	fieldLotAreaUnit      = "lotAreaUnit"
	fieldPrice            = "price"
)

// NormalizedLotAreaUnit is the unit label every canonical record carries
// after lot-area normalization. Downstream consumers assume square feet.
const NormalizedLotAreaUnit = "sqft"

// Transformer orchestrates normalization across a batch of raw records
// and applies record-level quality filtering.
type Transformer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewTransformer creates a Transformer logging through the given logger.
func NewTransformer(logger *zap.Logger) *Transformer {
	return &Transformer{
		logger: logger,
		now:    time.Now,
	}
}

// RunID derives the run-batch identifier from the transform instant.
func RunID(ts time.Time) string {
	return "run_" + ts.UTC().Format("20060102T150405") + "Z"
}

// Result is the outcome of one transform pass.
type Result struct {
	// Properties are the surviving canonical records, in source order
	Properties []*models.Property
	// Dropped counts records removed by the quality filter
	Dropped int
	// RunID is the run-batch identifier stamped on every record
	RunID string
	// ProcessedAt is the instant stamped on every record
	ProcessedAt time.Time
}

// TransformBatch normalizes a batch of raw records into canonical
// property records. A missing optional field never aborts the batch;
// malformed field values are substituted with nulls or defaults.
// Records missing the identity key or the price are dropped and counted.
func (t *Transformer) TransformBatch(records []models.RawRecord) *Result {
	processedAt := t.now().UTC()
	runID := RunID(processedAt)

	result := &Result{
		Properties:  make([]*models.Property, 0, len(records)),
		RunID:       runID,
		ProcessedAt: processedAt,
	}

	t.logger.Info("starting transformation",
		zap.Int("records", len(records)),
		zap.String("run_id", runID))

	for _, rec := range records {
		prop, ok := t.transformRecord(rec, processedAt, runID)
		if !ok {
			result.Dropped++
			continue
		}
		result.Properties = append(result.Properties, prop)
	}

	if result.Dropped > 0 {
		t.logger.Warn("quality filter dropped records",
			zap.Int("dropped", result.Dropped),
			zap.Int("surviving", len(result.Properties)))
	}

	t.logger.Info("transformation completed",
		zap.Int("records", len(result.Properties)),
		zap.Int("columns", len(models.Columns())))

	return result
}

// transformRecord projects one raw record onto the canonical schema.
// The steps are order-sensitive: later steps consume earlier derived
// fields.
func (t *Transformer) transformRecord(rec models.RawRecord, processedAt time.Time, runID string) (*models.Property, bool) {
	// Quality filter: identity key and price are required.
	zpid, okID := rec.Int(fieldZpid)
	price, okPrice := rec.Int(fieldPrice)
	if !okID || !okPrice {
		return nil, false
	}

	prop := &models.Property{
		ZillowPropertyID: zpid,
		Price:            price,
		LotAreaUnit:      NormalizedLotAreaUnit,
		ProcessedAt:      processedAt,
		ETLRunID:         runID,
	}

	// Address components.
	var addr AddressComponents
	address, hasAddress := rec.String(fieldAddress)
	if hasAddress {
		addr = ParseAddress(address)
	}
	prop.StreetAddress = addr.StreetAddress
	prop.City = addr.City
	prop.State = addr.State
	prop.ZipCode = addr.ZipCode

	// Listing subtype flags.
	prop.IsFSBA, prop.IsOpenHouse = ExtractListingSubType(rec[fieldListingSubType])

	// Timestamp and derived-date conversions.
	prop.DatePriceChanged = FromEpochMillis(rec[fieldDatePriceChanged])
	prop.DateListing = ListingDateFromDays(rec[fieldDaysOnZillow], processedAt)

	// Lot-area normalization.
	var lotArea *float64
	if v, ok := rec.Float(fieldLotAreaValue); ok {
		lotArea = &v
	}
	unit, _ := rec.String(fieldLotAreaUnit)
	prop.LotAreaValue = NormalizeLotArea(lotArea, unit)

	// District classification consumes the parsed city.
	city := ""
	if prop.City != nil {
		city = *prop.City
	}
	prop.VegasDistrict = ClassifyDistrict(address, city)

	// Numeric passthrough fields.
	prop.Latitude = floatField(rec, "latitude")
	prop.Longitude = floatField(rec, "longitude")
	prop.LivingArea = floatField(rec, "livingArea")
	prop.Bathrooms = floatField(rec, "bathrooms")
	prop.Bedrooms = intField(rec, "bedrooms")
	prop.RentZestimate = floatField(rec, "rentZestimate")
	prop.Zestimate = floatField(rec, "zestimate")
	prop.DaysOnZillow = intField(rec, fieldDaysOnZillow)

	// String passthrough fields.
	prop.PropertyType = stringField(rec, "propertyType")
	prop.ListingStatus = stringField(rec, "listingStatus")

	// Image, media, and marketing metadata columns (imgSrc, detailUrl,
	// hasImage, carouselPhotos) and the extraction-location marker are
	// never projected onto the canonical schema.

	return prop, true
}

// Validate runs post-transform sanity checks, logging warnings for
// anything suspicious. It never fails the batch.
func (t *Transformer) Validate(props []*models.Property) {
	seen := make(map[int64]struct{}, len(props))
	duplicates := 0
	for _, p := range props {
		if _, dup := seen[p.ZillowPropertyID]; dup {
			duplicates++
			continue
		}
		seen[p.ZillowPropertyID] = struct{}{}
	}
	if duplicates > 0 {
		t.logger.Warn("duplicate property ids found in the data",
			zap.Int("duplicates", duplicates))
	}
}

func floatField(rec models.RawRecord, key string) *float64 {
	if v, ok := rec.Float(key); ok {
		return &v
	}
	return nil
}

func intField(rec models.RawRecord, key string) *int64 {
	if v, ok := rec.Int(key); ok {
		return &v
	}
	return nil
}

func stringField(rec models.RawRecord, key string) *string {
	if v, ok := rec.String(key); ok {
		return &v
	}
	return nil
}
