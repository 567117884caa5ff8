package reservation

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// PlaceholderDistanceKm is recorded for every ride until bikes report odometer readings.
	PlaceholderDistanceKm = 20.0
	// RatePerKm is the flat charge per kilometre in the configured currency.
	RatePerKm = 50
)

// Cost is distance x RatePerKm.
func Cost(distanceKm float64) decimal.Decimal {
	return decimal.NewFromFloat(distanceKm).Mul(decimal.NewFromInt(RatePerKm))
}

// LoyaltyPoints awards one point per whole kilometre ridden.
func LoyaltyPoints(distanceKm float64) int {
	if distanceKm <= 0 || math.IsNaN(distanceKm) {
		return 0
	}
	return int(math.Floor(distanceKm))
}
