package validation

import (
	"errors"
	"strings"
)

// ErrMalformedStationQuery is returned when the station parameter is not of
// the form "code | station_name".
var ErrMalformedStationQuery = errors.New("station must be in the form code | station_name")

// ParseStationQuery splits a "code | station_name" parameter. The input must
// contain exactly one "|". Both parts are returned trimmed and may be empty; an
// empty code is left to the store lookup, which reports no data for it. The
// name is never checked against the store.
func ParseStationQuery(input string) (code, name string, err error) {
	parts := strings.Split(input, "|")
	if len(parts) != 2 {
		return "", "", ErrMalformedStationQuery
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
