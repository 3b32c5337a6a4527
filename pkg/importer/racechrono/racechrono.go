// Package racechrono imports RaceChrono GPS lap-timer CSV exports. The
// device is trusted: all values clamp into range, nothing is rejected as an
// outlier.
package racechrono

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/parse"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/sniff"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

const (
	timeHeader     = "Time (s)"
	speedHeader    = "Speed (km/h)"
	lonHeader      = "Longitude"
	latHeader      = "Latitude"
	throttleHeader = "Throttle pos (%)"

	maxTimeSeconds = 86400 // 24h
)

func clamp(raw string, lower, upper float64) *float64 {
	v := parse.Float(raw)
	if v == nil {
		return nil
	}
	c := min(max(*v, lower), upper)
	return &c
}

// Import parses a RaceChrono CSV into a normalized bundle.
//
//nolint:funlen // row pipeline reads best as one pass
func Import(data []byte, sessionID string) (
	bundle *model.Bundle, warnings []string, err error,
) {
	defer importer.Recover(&bundle, &warnings, &err)

	tbl, err := sniff.ReadTable(data)
	if err != nil {
		if errors.Is(err, sniff.ErrUndecodable) {
			return nil, nil, importer.NewBadInput(err.Error())
		}
		return nil, nil, importer.NewBadInput("invalid CSV format: " + err.Error())
	}
	if tbl.Len() == 0 {
		return nil, nil, importer.NewBadInput("empty CSV file")
	}

	// brake position is a percentage, Telemetry.brake_bar a pressure
	hasBrake := lo.SomeBy(tbl.Headers, func(h string) bool {
		return strings.Contains(strings.ToLower(h), "brake")
	})
	if hasBrake {
		warnings = append(warnings,
			"racechrono: brake_pos_pct not mapped to Telemetry.brake_bar (different units), dropped")
	}

	byTS := map[int64][]*model.Telemetry{}
	for i := 0; i < tbl.Len(); i++ {
		rowNum := i + 1
		timeRaw := parse.CleanString(tbl.Get(i, timeHeader))
		if timeRaw == "" {
			continue
		}
		timeS := parse.Float(timeRaw)
		if timeS == nil {
			warnings = append(warnings,
				fmt.Sprintf("Row %d: Invalid time format '%s'", rowNum, timeRaw))
			continue
		}
		if *timeS < 0 || *timeS > maxTimeSeconds {
			warnings = append(warnings,
				fmt.Sprintf("Row %d: Time %vs outside reasonable range", rowNum, *timeS))
			continue
		}
		tsMS := int64(math.Round(*timeS * 1000))

		sample := &model.Telemetry{
			SessionID:   sessionID,
			TsMS:        tsMS,
			SpeedKPH:    clamp(tbl.Get(i, speedHeader), 0, 400),
			ThrottlePct: clamp(tbl.Get(i, throttleHeader), 0, 100),
			LatDeg:      clamp(tbl.Get(i, latHeader), -90, 90),
			LonDeg:      clamp(tbl.Get(i, lonHeader), -180, 180),
		}
		if sample.PopulatedFields() == 0 {
			continue
		}
		byTS[tsMS] = append(byTS[tsMS], sample)
	}

	if len(byTS) == 0 {
		return nil, warnings, importer.NewBadInput("no valid telemetry rows found")
	}

	timestamps := lo.Keys(byTS)
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	var telemetry []*model.Telemetry
	for _, bucket := range importer.BucketTimestamps(timestamps) {
		var best *model.Telemetry
		bestCount := -1
		for _, ts := range bucket {
			for _, sample := range byTS[ts] {
				if count := sample.PopulatedFields(); count > bestCount {
					bestCount = count
					best = sample
				}
			}
		}
		telemetry = append(telemetry, best)
	}
	sort.Slice(telemetry, func(i, j int) bool { return telemetry[i].TsMS < telemetry[j].TsMS })

	bundle = &model.Bundle{
		Session: model.Session{
			ID:            sessionID,
			Source:        model.SourceChrono,
			TrackID:       "unknown",
			SchemaVersion: model.SchemaVersion,
		},
		Telemetry: telemetry,
	}
	return bundle, warnings, nil
}
