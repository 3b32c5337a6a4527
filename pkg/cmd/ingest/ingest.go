// Package ingest implements the "tdm ingest" command: import one or more
// files, merge them into a session and print a JSON report.
package ingest

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/trackdata-manager-go/log"
	"github.com/mpapenbr/trackdata-manager-go/pkg/analysis"
	"github.com/mpapenbr/trackdata-manager-go/pkg/config"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer"
	"github.com/mpapenbr/trackdata-manager-go/pkg/importer/registry"
	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
	"github.com/mpapenbr/trackdata-manager-go/pkg/store"
)

const defaultMaxFileSize = 32 << 20

func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest FILE...",
		Short: "import telemetry exports and merge them into a session",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(args)
		},
	}
	cmd.Flags().StringVar(&config.SessionID,
		"session-id",
		"",
		"session to merge the files into (default: random UUID)")
	cmd.Flags().StringVar(&config.Format,
		"format",
		"",
		"input format (trd-long, mylaps, weather, racechrono, gpx); required for CSV files")
	cmd.Flags().StringVar(&config.BundleOut,
		"bundle-out",
		"",
		"write the merged session bundle as JSON to this file")
	cmd.Flags().BoolVar(&config.ShowEvents,
		"show-events",
		false,
		"append the top detected events to the report")
	cmd.Flags().Int64Var(&config.MaxFileSize,
		"max-file-size",
		defaultMaxFileSize,
		"maximum accepted input file size in bytes")
	return cmd
}

type fileReport struct {
	File      string        `json:"file"`
	Format    string        `json:"format,omitempty"`
	Counts    *store.Counts `json:"counts,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Missing   []string      `json:"missing,omitempty"`
}

type eventReport struct {
	Kind     string  `json:"kind"`
	LapNo    int     `json:"lap_no"`
	Severity float64 `json:"severity"`
	Summary  string  `json:"summary"`
}

type ingestReport struct {
	SessionID string        `json:"session_id"`
	Files     []fileReport  `json:"files"`
	Totals    store.Counts  `json:"totals"`
	Events    []eventReport `json:"events,omitempty"`
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func setupLogger() *log.Logger {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel))
	}
	log.ResetDefault(logger)
	return logger
}

//nolint:funlen // command flow
func runIngest(files []string) error {
	logger := setupLogger()

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	st := store.New(store.WithLogger(logger.Named("store")))
	report := ingestReport{SessionID: sessionID}

	for _, file := range files {
		entry := ingestFile(st, file, sessionID)
		if entry.Counts != nil {
			report.Totals.Add(*entry.Counts)
		}
		report.Files = append(report.Files, entry)
	}

	if config.ShowEvents {
		if bundle, err := st.Bundle(sessionID); err == nil {
			for _, event := range analysis.Top(bundle, 5) {
				report.Events = append(report.Events, eventReport{
					Kind:     string(event.Kind()),
					LapNo:    event.LapNo(),
					Severity: event.Severity(),
					Summary:  event.Summary(),
				})
			}
		}
	}

	if config.BundleOut != "" {
		if err := writeBundle(st, sessionID, config.BundleOut); err != nil {
			return err
		}
	}

	out, err := oj.Marshal(&report, 2)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func ingestFile(st *store.Store, file, sessionID string) fileReport {
	entry := fileReport{File: file}

	info, err := os.Stat(file)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	if info.Size() > config.MaxFileSize {
		entry.Error = fmt.Sprintf("file exceeds size limit of %d bytes", config.MaxFileSize)
		return entry
	}
	data, err := os.ReadFile(file)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	var importFunc importer.Func
	if config.Format != "" {
		importFunc, err = registry.Lookup(config.Format)
		entry.Format = config.Format
	} else {
		entry.Format, importFunc, err = registry.Detect(file, data)
	}
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	log.Info("importing file",
		log.String("file", file),
		log.String("format", entry.Format))

	bundle, warnings, err := importFunc(data, sessionID)
	entry.Warnings = warnings
	if err != nil {
		var impErr *importer.Error
		if errors.As(err, &impErr) {
			entry.Error = impErr.Reason
			entry.ErrorKind = string(impErr.Kind)
			entry.Missing = impErr.Missing
		} else {
			entry.Error = err.Error()
		}
		return entry
	}

	counts, mergeWarnings := st.Merge(sessionID, bundle, bundle.Session.Source)
	entry.Counts = &counts
	entry.Warnings = append(entry.Warnings, mergeWarnings...)
	return entry
}

func writeBundle(st *store.Store, sessionID, outFile string) error {
	bundle, err := st.Bundle(sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			bundle = &model.Bundle{Session: model.Session{ID: sessionID}}
		} else {
			return err
		}
	}
	out, err := oj.Marshal(bundle, 2)
	if err != nil {
		return err
	}
	//nolint:gosec // report file, not a secret
	return os.WriteFile(outFile, out, 0o644)
}
