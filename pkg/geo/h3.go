package geo

import (
	"github.com/uber/h3-go/v4"
)

// H3 resolution levels. See: https://h3geo.org/docs/core-library/restable
const (
	// H3ResolutionMatching is used for driver-pickup proximity (~175m edge).
	H3ResolutionMatching = 9

	// H3KRingMatching is the k-ring radius for nearby driver lookups.
	// At resolution 9, k=4 covers roughly a 1.4 km radius.
	H3KRingMatching = 4
)

// LatLngToCell converts latitude/longitude to an H3 cell index at the given
// resolution. Coordinates are validated upstream; invalid input yields cell 0.
func LatLngToCell(lat, lng float64, resolution int) h3.Cell {
	latLng := h3.NewLatLng(lat, lng)
	cell, err := h3.LatLngToCell(latLng, resolution)
	if err != nil {
		return 0
	}
	return cell
}

// MatchingCell returns the matching-resolution cell for a location as a hex
// string, for Redis key usage.
func MatchingCell(lat, lng float64) string {
	return LatLngToCell(lat, lng, H3ResolutionMatching).String()
}

// NearbyCells returns the hex strings of all cells within k rings of the
// location at the given resolution.
func NearbyCells(lat, lng float64, resolution, k int) []string {
	origin := LatLngToCell(lat, lng, resolution)
	cells, err := origin.GridDisk(k)
	if err != nil {
		cells = []h3.Cell{origin}
	}
	result := make([]string, len(cells))
	for i, cell := range cells {
		result[i] = cell.String()
	}
	return result
}
