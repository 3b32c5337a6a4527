package model

// Source identifies the originating format of an ingested file. The same
// vocabulary is used for Session.Source tags and for merge precedence.
type Source string

const (
	SourceTRD     Source = "trd_csv"
	SourceTRDLong Source = "trd_long_csv"
	SourceMylaps  Source = "mylaps_sections_csv"
	SourceChrono  Source = "racechrono_csv"
	SourceGPX     Source = "gpx"
	SourceWeather Source = "weather_csv"
)
