package store

import (
	"github.com/samber/lo"

	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

// Source precedence per entity type, highest first. Unknown sources rank
// behind every listed one.
var (
	lapPrecedence = []model.Source{
		model.SourceMylaps, model.SourceTRD, model.SourceChrono,
		model.SourceGPX, model.SourceWeather,
	}
	sectionPrecedence = lapPrecedence

	telemetryPrecedence = []model.Source{
		model.SourceTRDLong, model.SourceChrono, model.SourceGPX,
		model.SourceMylaps, model.SourceWeather,
	}
	weatherPrecedence = []model.Source{
		model.SourceWeather, model.SourceTRDLong, model.SourceChrono,
		model.SourceGPX, model.SourceMylaps,
	}
)

func rank(src model.Source, precedence []model.Source) int {
	if idx := lo.IndexOf(precedence, src); idx >= 0 {
		return idx
	}
	return len(precedence)
}

// telemetryTolerances drive conflict detection between overlapping samples
// that the precedence rules keep apart. Order fixes the conflict listing in
// warnings.
var telemetryTolerances = []struct {
	channel   string
	tolerance float64
}{
	{"speed_kph", 0.5},
	{"throttle_pct", 0.5},
	{"brake_bar", 0.5},
	{"steer_deg", 0.5},
	{"acc_long_g", 0.05},
	{"acc_lat_g", 0.05},
	{"lat_deg", 1e-6},
	{"lon_deg", 1e-6},
}
