package models

// ObservationPayload is the merged station and measurement view returned by /api/data.
// Station fields are applied first, measurement fields second; Code is the
// only overlapping key and the measurement value wins.
type ObservationPayload struct {
	Status             int     `json:"status"`
	Name               string  `json:"name"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Altitude           float64 `json:"altitude"`
	InstallationHeight float64 `json:"installation_height"`
	Timezone           string  `json:"timezone"`

	Values     map[string]float64 `json:"values"`
	LastReport string             `json:"last_report"`
	Code       string             `json:"code"`

	StationLocalReportedTime string `json:"station_local_reported_time"`
	UTCReportedTime          string `json:"utc_reported_time"`
}

// ApplyStation copies station metadata into the payload.
func (p *ObservationPayload) ApplyStation(s Station) {
	p.Code = s.Code
	p.Status = s.Status
	p.Name = s.Name
	p.Latitude = s.Latitude
	p.Longitude = s.Longitude
	p.Altitude = s.Altitude
	p.InstallationHeight = s.InstallationHeight
	p.Timezone = s.Timezone
}

// ApplyMeasurements copies measurement fields into the payload, overwriting Code.
func (p *ObservationPayload) ApplyMeasurements(m MeasurementSet) {
	p.Values = m.Values
	p.LastReport = m.LastReport
	p.Code = m.Code
}

// StationData is the /api/data response body.
type StationData struct {
	Observations ObservationPayload `json:"observations"`
	Forecasts    Forecast           `json:"forecasts"`
}
