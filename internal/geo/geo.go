// README: Pure geographic computation helpers: distance, ETA, traffic factor.
package geo

import (
	"math"
	"time"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees (Haversine).
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// ETAMinutes converts a distance and an assumed speed into whole minutes of
// travel, scaled by the traffic factor. The second return value is false when
// no estimate can be produced (non-positive distance or speed); the returned
// minutes are never negative.
func ETAMinutes(distanceKm, speedKmh, trafficFactor float64) (int, bool) {
	if distanceKm <= 0 || speedKmh <= 0 {
		return 0, false
	}
	if trafficFactor < 1.0 {
		trafficFactor = 1.0
	}
	m := int(math.Round(distanceKm / speedKmh * trafficFactor * 60))
	if m < 0 {
		return 0, false
	}
	return m, true
}

// Traffic multiplier bands. Weekday rush hours are the worst, lunch and
// dinner windows get a milder bump, everything else is free-flow.
const (
	factorFreeFlow    = 1.0
	factorLunch       = 1.2
	factorMorningRush = 1.4
	factorEveningRush = 1.5
	factorWeekendMeal = 1.2
)

// TrafficFactor returns a deterministic multiplier in [1.0, 1.5] derived only
// from the hour of day and whether t falls on a weekend.
func TrafficFactor(t time.Time) float64 {
	h := t.Hour()
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		if (h >= 11 && h < 14) || (h >= 18 && h < 21) {
			return factorWeekendMeal
		}
		return factorFreeFlow
	default:
		switch {
		case h >= 7 && h < 9:
			return factorMorningRush
		case h >= 11 && h < 13:
			return factorLunch
		case h >= 17 && h < 20:
			return factorEveningRush
		default:
			return factorFreeFlow
		}
	}
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
