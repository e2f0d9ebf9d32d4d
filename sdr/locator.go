package sdr

import (
	"fmt"
	"math"
	"strings"
)

// Locator converts a position to a Maidenhead locator with 4, 6 or 8
// characters.
func Locator(lat, lon float64, precision int) (string, error) {
	if precision != 4 && precision != 6 && precision != 8 {
		return "", fmt.Errorf("invalid Maidenhead precision: %d (must be 4, 6, or 8)", precision)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return "", fmt.Errorf("position out of range: %f, %f", lat, lon)
	}

	// Shift into positive space, staying inside the last field on the edges.
	lon = math.Min(lon+180, 360-1e-9)
	lat = math.Min(lat+90, 180-1e-9)

	var b strings.Builder
	// Field: 20° longitude × 10° latitude
	b.WriteByte(byte('A' + int(lon/20)))
	b.WriteByte(byte('A' + int(lat/10)))
	lon = math.Mod(lon, 20)
	lat = math.Mod(lat, 10)

	// Square: 2° longitude × 1° latitude
	b.WriteByte(byte('0' + int(lon/2)))
	b.WriteByte(byte('0' + int(lat)))
	lon = math.Mod(lon, 2)
	lat = math.Mod(lat, 1)

	if precision >= 6 {
		// Subsquare: 5' longitude × 2.5' latitude
		b.WriteByte(byte('a' + int(lon*12)))
		b.WriteByte(byte('a' + int(lat*24)))
		lon = math.Mod(lon, 2.0/24.0)
		lat = math.Mod(lat, 1.0/24.0)
	}
	if precision == 8 {
		// Extended square: 0.5' longitude × 0.25' latitude
		b.WriteByte(byte('0' + int(lon*120)))
		b.WriteByte(byte('0' + int(lat*240)))
	}
	return b.String(), nil
}

// LatLon converts a Maidenhead locator to the center of its grid square.
func LatLon(locator string) (lat, lon float64, err error) {
	locator = strings.ToUpper(locator)

	if len(locator) != 4 && len(locator) != 6 && len(locator) != 8 {
		return 0, 0, fmt.Errorf("invalid Maidenhead locator length: %d (must be 4, 6, or 8)", len(locator))
	}
	if locator[0] < 'A' || locator[0] > 'R' || locator[1] < 'A' || locator[1] > 'R' {
		return 0, 0, fmt.Errorf("invalid field characters (must be A-R)")
	}
	if locator[2] < '0' || locator[2] > '9' || locator[3] < '0' || locator[3] > '9' {
		return 0, 0, fmt.Errorf("invalid square characters (must be 0-9)")
	}
	if len(locator) >= 6 && (locator[4] < 'A' || locator[4] > 'X' || locator[5] < 'A' || locator[5] > 'X') {
		return 0, 0, fmt.Errorf("invalid subsquare characters (must be A-X)")
	}
	if len(locator) == 8 && (locator[6] < '0' || locator[6] > '9' || locator[7] < '0' || locator[7] > '9') {
		return 0, 0, fmt.Errorf("invalid extended square characters (must be 0-9)")
	}

	lon = float64(locator[0]-'A')*20 + float64(locator[2]-'0')*2
	lat = float64(locator[1]-'A')*10 + float64(locator[3]-'0')
	switch len(locator) {
	case 4:
		lon += 1.0
		lat += 0.5
	case 6:
		lon += float64(locator[4]-'A')*(2.0/24.0) + 2.0/48.0
		lat += float64(locator[5]-'A')*(1.0/24.0) + 1.0/48.0
	case 8:
		lon += float64(locator[4]-'A')*(2.0/24.0) + float64(locator[6]-'0')*(2.0/240.0) + 2.0/480.0
		lat += float64(locator[5]-'A')*(1.0/24.0) + float64(locator[7]-'0')*(1.0/240.0) + 1.0/480.0
	}
	return lat - 90, lon - 180, nil
}
