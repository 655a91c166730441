// Package models provides the data models for the ETL pipeline: the
// loosely-typed raw records produced by the extract stage and the
// fixed-shape canonical property records consumed by the load stage.
package models

import (
	"strconv"
	"strings"
	"time"
)

// RawRecord is one untyped property record as produced by the upstream
// search API. Fields vary per record: optional fields may be absent,
// null, or type-inconsistent across records (a numeric field may arrive
// as a string in some rows). Every accessor has an explicit absent path.
type RawRecord map[string]interface{}

// missing sentinels the upstream (and its CSV round-trip) uses for
// semantically absent values.
func isMissingSentinel(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "None", "NaN", "nan", "null", "<nil>":
		return true
	}
	return false
}

// Has reports whether the field is present with a non-missing value.
func (r RawRecord) Has(key string) bool {
	v, ok := r[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && isMissingSentinel(s) {
		return false
	}
	return true
}

// String returns the field as a string. Numeric values are formatted;
// missing sentinels report absent.
func (r RawRecord) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if isMissingSentinel(t) {
			return "", false
		}
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Float returns the field as a float64, accepting numeric or
// numeric-string input.
func (r RawRecord) Float(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		if isMissingSentinel(t) {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int returns the field as an int64, truncating fractional input.
func (r RawRecord) Int(key string) (int64, bool) {
	f, ok := r.Float(key)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Bool returns the field as a bool, accepting native or string input.
func (r RawRecord) Bool(key string) (bool, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		if isMissingSentinel(t) {
			return false, false
		}
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(t)))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// ListingSubTypeKind discriminates the shapes the listingSubType field
// arrives in.
type ListingSubTypeKind int

const (
	// ListingSubTypeAbsent means the field was missing or null
	ListingSubTypeAbsent ListingSubTypeKind = iota
	// ListingSubTypeRawString means the field was a JSON-like string
	ListingSubTypeRawString
	// ListingSubTypeStructured means the field was a native mapping
	ListingSubTypeStructured
)

// ListingSubType is the tagged variant for the duck-typed listingSubType
// field. It is resolved by transform.ExtractListingSubType, never by ad
// hoc type inspection.
type ListingSubType struct {
	Kind   ListingSubTypeKind
	Raw    string
	Fields map[string]interface{}
}

// ListingSubTypeOf classifies the raw field value into the variant.
func ListingSubTypeOf(v interface{}) ListingSubType {
	switch t := v.(type) {
	case nil:
		return ListingSubType{Kind: ListingSubTypeAbsent}
	case string:
		if isMissingSentinel(t) {
			return ListingSubType{Kind: ListingSubTypeAbsent}
		}
		return ListingSubType{Kind: ListingSubTypeRawString, Raw: t}
	case map[string]interface{}:
		return ListingSubType{Kind: ListingSubTypeStructured, Fields: t}
	default:
		return ListingSubType{Kind: ListingSubTypeAbsent}
	}
}

// Property is the canonical, load-ready record. It is created once per
// transform pass and never mutated afterwards; a changed listing
// produces a new record under a new run identifier.
type Property struct {
	ZillowPropertyID int64
	StreetAddress    *string
	City             *string
	State            *string
	ZipCode          *string
	VegasDistrict    string
	Latitude         *float64
	Longitude        *float64
	LivingArea       *float64
	LotAreaValue     *float64
	LotAreaUnit      string
	Bathrooms        *float64
	Bedrooms         *int64
	Price            int64
	RentZestimate    *float64
	Zestimate        *float64
	PropertyType     *string
	ListingStatus    *string
	DaysOnZillow     *int64
	DateListing      *time.Time
	DatePriceChanged *time.Time
	IsFSBA           bool
	IsOpenHouse      bool
	ProcessedAt      time.Time
	ETLRunID         string
}

// Columns is the fixed canonical column order shared by the transform
// output, the CSV wire format, and the destination table.
func Columns() []string {
	return []string{
		"zillow_property_id",
		"street_address",
		"city",
		"state",
		"zip_code",
		"vegas_district",
		"latitude",
		"longitude",
		"livingArea",
		"Normalized_lotAreaValue",
		"lotAreaUnit",
		"bathrooms",
		"bedrooms",
		"price",
		"rentZestimate",
		"zestimate",
		"propertyType",
		"listingStatus",
		"daysOnZillow",
		"date_listing",
		"datePriceChanged",
		"is_fsba",
		"is_open_house",
		"processed_at",
		"etl_run_id",
	}
}

// Row renders the property as a value slice in canonical column order.
// Nullable fields with no value render as nil so the wire format can
// carry a true relational null.
func (p *Property) Row() []interface{} {
	return []interface{}{
		p.ZillowPropertyID,
		strPtrVal(p.StreetAddress),
		strPtrVal(p.City),
		strPtrVal(p.State),
		strPtrVal(p.ZipCode),
		p.VegasDistrict,
		floatPtrVal(p.Latitude),
		floatPtrVal(p.Longitude),
		floatPtrVal(p.LivingArea),
		floatPtrVal(p.LotAreaValue),
		p.LotAreaUnit,
		floatPtrVal(p.Bathrooms),
		intPtrVal(p.Bedrooms),
		p.Price,
		floatPtrVal(p.RentZestimate),
		floatPtrVal(p.Zestimate),
		strPtrVal(p.PropertyType),
		strPtrVal(p.ListingStatus),
		intPtrVal(p.DaysOnZillow),
		timePtrVal(p.DateListing),
		timePtrVal(p.DatePriceChanged),
		p.IsFSBA,
		p.IsOpenHouse,
		p.ProcessedAt,
		p.ETLRunID,
	}
}

func strPtrVal(p *string) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtrVal(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func intPtrVal(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func timePtrVal(p *time.Time) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
