// Package gpx imports GPS track logs in GPX 1.1 XML. Only position, time and
// the common speed extension are used; elevation is parsed but not part of the
// telemetry vocabulary.
package gpx

import (
	"bytes"
	"encoding/xml"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

// Sniff reports whether the data looks like a GPX document. Used by format
// detection for files without a .gpx suffix.
func Sniff(data []byte) bool {
	head := bytes.TrimLeft(data, " \t\r\n")
	if len(head) > 200 {
		head = head[:200]
	}
	return bytes.Contains(head, []byte("<gpx")) || bytes.Contains(head, []byte("<trkpt"))
}

type gpxFile struct {
	XMLName xml.Name   `xml:"gpx"`
	Tracks  []gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Segments []gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat  *float64      `xml:"lat,attr"`
	Lon  *float64      `xml:"lon,attr"`
	Time string        `xml:"time"`
	Ele  *float64      `xml:"ele"`
	Ext  *gpxExtension `xml:"extensions"`
}

// gpxExtension covers both a bare <speed> child and the Garmin
// TrackPointExtension nesting. Speed is meters per second in either form.
type gpxExtension struct {
	Speed *float64 `xml:"speed"`
	TPX   *struct {
		Speed *float64 `xml:"speed"`
	} `xml:"TrackPointExtension"`
}

func (e *gpxExtension) speedMPS() *float64 {
	if e == nil {
		return nil
	}
	if e.Speed != nil {
		return e.Speed
	}
	if e.TPX != nil {
		return e.TPX.Speed
	}
	return nil
}

// pointTime accepts RFC3339 (the GPX norm) and a naive form without zone,
// taken as UTC. Devices that emit neither get timestamp 0.
func pointTime(raw string) int64 {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UnixMilli()
	}
	if ts, err := time.ParseInLocation(
		"2006-01-02T15:04:05", strings.TrimSuffix(raw, "Z"), time.UTC); err == nil {
		return ts.UnixMilli()
	}
	return 0
}

// Import parses a GPX document into a normalized bundle. Points keep their
// document order; timestamps are absolute epoch milliseconds.
func Import(data []byte, sessionID string) (
	bundle *model.Bundle, warnings []string, err error,
) {
	defer importer.Recover(&bundle, &warnings, &err)

	var doc gpxFile
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, importer.NewBadInput("invalid GPX document: " + err.Error())
	}

	var telemetry []*model.Telemetry
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, pt := range seg.Points {
				if pt.Lat == nil || pt.Lon == nil || strings.TrimSpace(pt.Time) == "" {
					continue
				}
				sample := &model.Telemetry{
					SessionID: sessionID,
					TsMS:      pointTime(strings.TrimSpace(pt.Time)),
					LatDeg:    lo.ToPtr(*pt.Lat),
					LonDeg:    lo.ToPtr(*pt.Lon),
				}
				// a speed of exactly zero usually means "no fix", keep it absent
				if mps := pt.Ext.speedMPS(); mps != nil && *mps != 0 {
					sample.SpeedKPH = lo.ToPtr(*mps * 3.6)
				}
				telemetry = append(telemetry, sample)
			}
		}
	}
	if len(telemetry) == 0 {
		return nil, nil, importer.NewBadInput("no <trkpt> with time/lat/lon found")
	}

	bundle = &model.Bundle{
		Session: model.Session{
			ID:            sessionID,
			Source:        model.SourceGPX,
			TrackID:       "unknown",
			SchemaVersion: model.SchemaVersion,
		},
		Telemetry: telemetry,
	}
	return bundle, warnings, nil
}
