package weather

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Location is a point on the globe we forecast for.
// Equality is by coordinates only; Name is descriptive.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Name      string  `json:"name,omitempty"`
}

// Validate reports whether the coordinates are within range.
func (l Location) Validate() error {
	if err := validate.Struct(l); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	return nil
}

// Key returns a canonical string key for indexing this location in caches and stores.
// Full precision is kept so nearby points never collide.
func (l Location) Key() string {
	return strconv.FormatFloat(l.Latitude, 'f', -1, 64) + ":" + strconv.FormatFloat(l.Longitude, 'f', -1, 64)
}

// Equal compares two locations by coordinates.
func (l Location) Equal(o Location) bool {
	return l.Latitude == o.Latitude && l.Longitude == o.Longitude
}

func (l Location) String() string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

// ForecastQuery pairs a location with the day being asked about.
type ForecastQuery struct {
	Location  Location  `json:"location"`
	EventDate time.Time `json:"event_date"`
}

// Provenance says whether a baseline amount was observed on the requested
// day or borrowed from the same calendar day a year earlier.
type Provenance string

const (
	ProvenanceObserved         Provenance = "observed"
	ProvenanceProxiedPriorYear Provenance = "proxied_prior_year"
)

// BaselineReading is the ground-truth observation for a location and day.
type BaselineReading struct {
	AmountMM   float64    `json:"precipitation_mm"`
	Provenance Provenance `json:"provenance"`
	// SourceDate is the day the amount was actually observed on.
	SourceDate time.Time `json:"source_date"`
	Dataset    string    `json:"dataset"`
}

// EstimatorResult is a single estimator's point estimate.
type EstimatorResult struct {
	AmountMM   float64 `json:"precipitation_mm"`
	Confidence float64 `json:"confidence"`
}

// LearnedResult is what the learned estimator returns.
type LearnedResult struct {
	EstimatorResult
	ModelAvailable bool `json:"model_available"`
}

// TrendLabel classifies the multi-year slope.
type TrendLabel string

const (
	TrendStable           TrendLabel = "stable"
	TrendIncreasing       TrendLabel = "increasing"
	TrendDecreasing       TrendLabel = "decreasing"
	TrendInsufficientData TrendLabel = "insufficient_data"
	TrendError            TrendLabel = "error"
)

// TrendResult is the Trend Estimator output plus fit diagnostics.
type TrendResult struct {
	EstimatorResult
	Label    TrendLabel `json:"trend"`
	Slope    float64    `json:"slope"`
	RSquared float64    `json:"r_squared"`
	Samples  int        `json:"samples"`
}

// ConfidenceLabel is the qualitative overall confidence.
type ConfidenceLabel string

const (
	ConfidenceVeryLow  ConfidenceLabel = "very_low"
	ConfidenceLow      ConfidenceLabel = "low"
	ConfidenceMedium   ConfidenceLabel = "medium"
	ConfidenceHigh     ConfidenceLabel = "high"
	ConfidenceVeryHigh ConfidenceLabel = "very_high"
)

// Interval is the 95% band around the fused amount.
type Interval struct {
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	StdDev float64 `json:"std_dev"`
}

// SourceContribution describes one estimator's part in the blend.
type SourceContribution struct {
	AmountMM   float64 `json:"precipitation_mm"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence"`
}

type BaselineContribution struct {
	SourceContribution
	Probability float64    `json:"probability"`
	Provenance  Provenance `json:"provenance"`
	SourceDate  string     `json:"source_date"`
}

type LearnedContribution struct {
	SourceContribution
	ModelAvailable bool `json:"model_available"`
}

type TrendContribution struct {
	SourceContribution
	Trend    TrendLabel `json:"trend"`
	Slope    float64    `json:"slope"`
	RSquared float64    `json:"r_squared"`
	Samples  int        `json:"samples"`
}

// Breakdown is the per-source view of a blended forecast.
type Breakdown struct {
	Baseline BaselineContribution `json:"baseline"`
	Learned  LearnedContribution  `json:"learned"`
	Trend    TrendContribution    `json:"trend"`
}

// EnsembleResult is the blended forecast returned to callers.
type EnsembleResult struct {
	Location        Location        `json:"location"`
	EventDate       string          `json:"event_date"`
	PrecipitationMM float64         `json:"precipitation_intensity_mm"`
	Probability     float64         `json:"precipitation_probability"`
	Interval        Interval        `json:"confidence_interval_95"`
	Confidence      ConfidenceLabel `json:"overall_confidence"`
	ConfidenceScore float64         `json:"confidence_score"`
	Summary         string          `json:"summary"`
	Sources         Breakdown       `json:"sources"`
	Dataset         string          `json:"dataset"`
	IssuedAt        time.Time       `json:"issued_at"` // always UTC
}

// ForecastRecord is a persisted EnsembleResult.
type ForecastRecord struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Result    EnsembleResult `json:"result"`
}

// Statistics aggregates everything a ResultStore has seen.
type Statistics struct {
	TotalForecasts     int     `json:"total_forecasts"`
	AvgProbability     float64 `json:"avg_rain_probability"`
	AvgPrecipitationMM float64 `json:"avg_precipitation_mm"`
	UniqueLocations    int     `json:"unique_locations"`
}
