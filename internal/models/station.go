package models

// Station is the cached metadata for one active TAHMO station.
type Station struct {
	Code               string  `json:"code"`
	Status             int     `json:"status"`
	Name               string  `json:"name"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Altitude           float64 `json:"altitude"`
	InstallationHeight float64 `json:"installation_height"`
	Timezone           string  `json:"timezone"`
}

// StationActive is the TAHMO status flag for a station that is reporting.
const StationActive = 1

// RawStation is one record of the TAHMO assets/v2/stations listing.
type RawStation struct {
	Code            string  `json:"code"`
	Status          int     `json:"status"`
	ElevationGround float64 `json:"elevationground"`
	Location        struct {
		Name         string  `json:"name"`
		Latitude     float64 `json:"latitude"`
		Longitude    float64 `json:"longitude"`
		ElevationMSL float64 `json:"elevationmsl"`
		Timezone     string  `json:"timezone"`
	} `json:"location"`
}

// StationsResponse is the envelope returned by assets/v2/stations.
type StationsResponse struct {
	Data []RawStation `json:"data"`
}

// Project maps the upstream record onto the stored Station shape.
func (r RawStation) Project() Station {
	return Station{
		Code:               r.Code,
		Status:             r.Status,
		Name:               r.Location.Name,
		Latitude:           r.Location.Latitude,
		Longitude:          r.Location.Longitude,
		Altitude:           r.Location.ElevationMSL,
		InstallationHeight: r.ElevationGround,
		Timezone:           r.Location.Timezone,
	}
}
