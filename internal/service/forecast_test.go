package service

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseForecast_ZipsDays(t *testing.T) {
	body := json.RawMessage(`{"data_day":{"time":["2024-01-10","2024-01-11","2024-01-12"],"precipitation":[0,1.5,null]}}`)
	f, err := ParseForecast(body)
	if err != nil {
		t.Fatalf("ParseForecast() error = %v", err)
	}
	if f.Failed() {
		t.Fatal("ParseForecast() Failed() = true, want series")
	}
	if len(f.Series) != 3 {
		t.Fatalf("len(Series) = %d, want 3", len(f.Series))
	}
	if f.Series[1].Date != "2024-01-11" || f.Series[1].Precipitation == nil || *f.Series[1].Precipitation != 1.5 {
		t.Errorf("Series[1] = %+v, want 2024-01-11 / 1.5", f.Series[1])
	}

	out, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `[["2024-01-10",0],["2024-01-11",1.5],["2024-01-12",null]]`
	if string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}
}

func TestParseForecast_UnevenArraysUseShortest(t *testing.T) {
	f, err := ParseForecast(json.RawMessage(`{"data_day":{"time":["a","b","c"],"precipitation":[1,2]}}`))
	if err != nil {
		t.Fatalf("ParseForecast() error = %v", err)
	}
	if len(f.Series) != 2 {
		t.Errorf("len(Series) = %d, want 2", len(f.Series))
	}
}

func TestParseForecast_ErrorObjectReturnedVerbatim(t *testing.T) {
	body := json.RawMessage(`{"error": true, "message": "invalid key"}`)
	f, err := ParseForecast(body)
	if err != nil {
		t.Fatalf("ParseForecast() error = %v", err)
	}
	if !f.Failed() {
		t.Fatal("ParseForecast() Failed() = false, want error object")
	}
	out, _ := json.Marshal(f)
	var got, want map[string]any
	_ = json.Unmarshal(out, &got)
	_ = json.Unmarshal(body, &want)
	if got["error"] != want["error"] || got["message"] != want["message"] || len(got) != len(want) {
		t.Errorf("Marshal() = %s, want %s", out, body)
	}
}

func TestParseForecast_FalsyErrorIsIgnored(t *testing.T) {
	f, err := ParseForecast(json.RawMessage(`{"error":false,"data_day":{"time":["2024-01-10"],"precipitation":[2]}}`))
	if err != nil {
		t.Fatalf("ParseForecast() error = %v", err)
	}
	if f.Failed() || len(f.Series) != 1 {
		t.Errorf("ParseForecast() = %+v, want one-day series", f)
	}
}

func TestParseForecast_DataUnavailable(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no data_day", `{"metadata":{}}`},
		{"no precipitation", `{"data_day":{"time":["2024-01-10"]}}`},
		{"no time", `{"data_day":{"precipitation":[1]}}`},
		{"not an object", `[1,2,3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseForecast(json.RawMessage(tt.body))
			if !errors.Is(err, ErrDataUnavailable) {
				t.Errorf("ParseForecast() error = %v, want ErrDataUnavailable", err)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    any
		want bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{0.0, false},
		{1.0, true},
		{"", false},
		{"bad key", true},
		{[]any{}, false},
		{map[string]any{"a": 1.0}, true},
	}
	for _, tt := range tests {
		if got := truthy(tt.v); got != tt.want {
			t.Errorf("truthy(%#v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
