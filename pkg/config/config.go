package config

// this holds the resolved configuration values from CLI
var (
	LogLevel    string // sets the log level (zap log level values)
	LogFormat   string // text vs json
	SessionID   string // session id to merge the imported files into
	Format      string // explicit import format (trd-long, mylaps, weather, racechrono, gpx)
	BundleOut   string // if set, the merged session bundle is written to this file
	ShowEvents  bool   // if true, top detected events are appended to the ingest report
	MaxFileSize int64  // max accepted input file size in bytes
)
