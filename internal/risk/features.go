// Package risk holds the per-transaction fraud signals that sit beside the
// laundering detectors: feature engineering for the opaque classifier, the
// rule adjustments applied on top of it and identity document parsing.
package risk

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	earthRadiusKm    = 6371.0
	earthRadiusMiles = 3956.0
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// Transaction is a single card payment submitted for scoring.
type Transaction struct {
	TransactionID string
	CardNumber    string
	Merchant      string
	Category      string
	Gender        string
	Amount        decimal.Decimal
	Timestamp     time.Time
	CityPop       float64
	DateOfBirth   time.Time
	Home          *Coordinates
	MerchantAt    *Coordinates
}

// Features are the engineered inputs the classifier consumes.
type Features struct {
	Amount           float64 `json:"amt"`
	CityPop          float64 `json:"city_pop"`
	DistanceFromHome float64 `json:"distance_from_home"`
	Hour             int     `json:"hour"`
	DayOfWeek        int     `json:"day_of_week"`
	IsNight          bool    `json:"is_night"`
	IsWeekend        bool    `json:"is_weekend"`
	Age              int     `json:"age"`
	AmountPerCityPop float64 `json:"amt_per_city_pop"`
	Merchant         string  `json:"merchant"`
	Category         string  `json:"category"`
	Gender           string  `json:"gender"`
}

// BuildFeatures derives classifier features. Days of the week count from
// Monday as 0; distance is in kilometres and 0 without both coordinates.
func BuildFeatures(tx Transaction) Features {
	amount := tx.Amount.InexactFloat64()
	hour := tx.Timestamp.Hour()
	dow := (int(tx.Timestamp.Weekday()) + 6) % 7

	f := Features{
		Amount:           amount,
		CityPop:          tx.CityPop,
		Hour:             hour,
		DayOfWeek:        dow,
		IsNight:          hour >= 22 || hour <= 5,
		IsWeekend:        dow >= 5,
		Age:              ageAt(tx.DateOfBirth, tx.Timestamp),
		AmountPerCityPop: amount / (tx.CityPop + 1),
		Merchant:         tx.Merchant,
		Category:         tx.Category,
		Gender:           tx.Gender,
	}
	if tx.Home != nil && tx.MerchantAt != nil {
		f.DistanceFromHome = GreatCircleKm(*tx.Home, *tx.MerchantAt)
	}
	return f
}

func ageAt(dob, at time.Time) int {
	if dob.IsZero() || at.Before(dob) {
		return 0
	}
	age := at.Year() - dob.Year()
	if at.YearDay() < dob.YearDay() {
		age--
	}
	return age
}

// GreatCircleKm returns the haversine distance between a and b in kilometres.
func GreatCircleKm(a, b Coordinates) float64 {
	return centralAngle(a, b) * earthRadiusKm
}

// GreatCircleMiles returns the haversine distance between a and b in miles.
func GreatCircleMiles(a, b Coordinates) float64 {
	return centralAngle(a, b) * earthRadiusMiles
}

func centralAngle(a, b Coordinates) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Long) - radians(a.Long)

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
