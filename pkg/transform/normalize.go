package transform

import (
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/estateops/vegasetl/pkg/models"
)

// SquareFeetPerAcre is the conversion constant for lot-area normalization.
const SquareFeetPerAcre = 43560.0

// epoch-millisecond bounds accepted by FromEpochMillis; values outside
// this window are treated as malformed rather than converted.
const (
	minEpochMillis = 0
	maxEpochMillis = 4102444800000 // 2100-01-01T00:00:00Z
)

// FromEpochMillis converts a Unix-epoch-millisecond value to a UTC
// timestamp. The input may be numeric or a numeric string; null, empty,
// non-numeric, or out-of-range input yields nil, never an error.
func FromEpochMillis(v interface{}) *time.Time {
	rec := models.RawRecord{"v": v}
	ms, ok := rec.Float("v")
	if !ok {
		return nil
	}
	if ms < minEpochMillis || ms > maxEpochMillis {
		return nil
	}
	ts := time.Unix(int64(ms)/1000, (int64(ms)%1000)*int64(time.Millisecond)).UTC()
	return &ts
}

// ListingDateFromDays derives the listing date from a days-on-market
// count: today (UTC) minus N days, at date precision. Non-convertible
// input yields nil.
func ListingDateFromDays(v interface{}, now time.Time) *time.Time {
	rec := models.RawRecord{"v": v}
	days, ok := rec.Int("v")
	if !ok {
		return nil
	}
	d := now.UTC().AddDate(0, 0, -int(days))
	d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// NormalizeLotArea converts a lot-area value to square feet. Unit labels
// containing "acre" (any case) are multiplied by 43,560; anything else
// passes through unchanged. A nil value stays nil regardless of unit.
func NormalizeLotArea(value *float64, unit string) *float64 {
	if value == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(unit), "acre") {
		sqft := *value * SquareFeetPerAcre
		return &sqft
	}
	out := *value
	return &out
}

// subTypeNormalizer rewrites the upstream's JSON-like listingSubType
// strings (single-quote delimiters, capitalized literals) into JSON.
var subTypeNormalizer = strings.NewReplacer(
	"'", `"`,
	"True", "true",
	"False", "false",
	"None", "null",
)

// ExtractListingSubType resolves the duck-typed listingSubType field
// into the two listing flags. The field may be a native mapping or a
// JSON-like string using single-quote delimiters; any parse failure or
// absent input yields both flags false.
func ExtractListingSubType(v interface{}) (isFSBA, isOpenHouse bool) {
	sub := models.ListingSubTypeOf(v)

	var fields map[string]interface{}
	switch sub.Kind {
	case models.ListingSubTypeAbsent:
		return false, false
	case models.ListingSubTypeRawString:
		normalized := subTypeNormalizer.Replace(sub.Raw)
		if err := json.Unmarshal([]byte(normalized), &fields); err != nil {
			return false, false
		}
	case models.ListingSubTypeStructured:
		fields = sub.Fields
	}

	if b, ok := fields["is_FSBA"].(bool); ok {
		isFSBA = b
	}
	if b, ok := fields["is_openHouse"].(bool); ok {
		isOpenHouse = b
	}
	return isFSBA, isOpenHouse
}

// districtKeyword maps an address substring to its district label.
// Order matters: neighborhood names that live inside another area's
// addresses (Green Valley and Anthem are in Henderson, Aliante is in
// North Las Vegas) must be tested before their parent.
type districtKeyword struct {
	keyword  string
	district string
}

var districtKeywords = []districtKeyword{
	{"summerlin", "Summerlin"},
	{"green valley", "Green Valley"},
	{"anthem", "Anthem"},
	{"aliante", "Aliante"},
	{"centennial", "Centennial Hills"},
	{"north las vegas", "North Las Vegas"},
	{"henderson", "Henderson"},
	{"spring valley", "Spring Valley"},
	{"sunrise manor", "Sunrise Manor"},
	{"enterprise", "Enterprise"},
	{"paradise", "Paradise"},
	{"whitney", "Whitney"},
	{"boulder city", "Boulder City"},
	{"downtown", "Downtown"},
}

// DefaultDistrict is the fallback when neither the address nor the city
// identifies a district.
const DefaultDistrict = "Las Vegas"

// ClassifyDistrict assigns a Vegas district from the address keywords,
// first match wins. Addresses matching no keyword fall back to the
// trimmed city name, then to DefaultDistrict. Never returns empty.
func ClassifyDistrict(address, city string) string {
	lower := strings.ToLower(address)
	for _, dk := range districtKeywords {
		if strings.Contains(lower, dk.keyword) {
			return dk.district
		}
	}
	if trimmed := strings.TrimSpace(city); trimmed != "" {
		return trimmed
	}
	return DefaultDistrict
}
