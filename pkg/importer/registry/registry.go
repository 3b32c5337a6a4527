// Package registry maps format identifiers to importer functions and detects
// the format of incoming files.
package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/gpx"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/mylaps"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/racechrono"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/trdlong"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/weather"
)

// Formats maps the format ids accepted on the command line to their importer.
var Formats = map[string]importer.Func{
	"trd-long":   trdlong.Import,
	"mylaps":     mylaps.Import,
	"weather":    weather.Import,
	"racechrono": racechrono.Import,
	"gpx":        gpx.Import,
}

// Names returns the known format ids, sorted.
func Names() []string {
	names := lo.Keys(Formats)
	sort.Strings(names)
	return names
}

// Lookup resolves an explicit format id.
func Lookup(format string) (importer.Func, error) {
	fn, ok := Formats[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (known: %s)",
			format, strings.Join(Names(), ", "))
	}
	return fn, nil
}

// Detect picks an importer for a file. GPX documents are recognized by suffix
// or content; the CSV dialects are too similar to guess, so anything else
// needs an explicit format id.
func Detect(filename string, data []byte) (string, importer.Func, error) {
	if strings.EqualFold(filepath.Ext(filename), ".gpx") || gpx.Sniff(data) {
		return "gpx", gpx.Import, nil
	}
	return "", nil, fmt.Errorf(
		"cannot detect format of %q, specify one of: %s",
		filename, strings.Join(Names(), ", "))
}
