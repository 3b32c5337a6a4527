// Package importer defines the common contract of the format importers:
// every importer takes raw file bytes plus a session id and produces a
// normalized bundle, a list of warnings and - on fatal failure - a typed
// *Error instead of the bundle.
package importer

import (
	"fmt"
	"strings"

	"github.com/mpapenbr/trackdata-manager-go/pkg/model"
)

// Func is the uniform importer signature. A nil bundle is always accompanied
// by a *Error; a non-nil bundle may still carry warnings.
type Func func(data []byte, sessionID string) (*model.Bundle, []string, error)

type ErrorKind string

const (
	// BadInput covers undecodable bytes, empty files, malformed content and
	// anything unexpected caught at the importer boundary.
	BadInput ErrorKind = "bad_input"
	// InsufficientChannels means the file parsed but lacks required canonical
	// columns or no record cleared the populated-fields gate.
	InsufficientChannels ErrorKind = "insufficient_channels"
)

// Error is the fatal failure shape of all importers. Missing lists canonical
// names absent from the file (may be empty).
type Error struct {
	Kind    ErrorKind
	Reason  string
	Missing []string
}

func (e *Error) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: %s (missing: %s)",
			e.Kind, e.Reason, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func NewBadInput(reason string) *Error {
	return &Error{Kind: BadInput, Reason: reason}
}

func NewInsufficientChannels(reason string, missing []string) *Error {
	return &Error{Kind: InsufficientChannels, Reason: reason, Missing: missing}
}

// Recover wraps an unanticipated panic into the fatal failure shape. It is
// the only catch-all in the import pipeline; use via
//
//	defer importer.Recover(&bundle, &warnings, &err)
func Recover(bundle **model.Bundle, warnings *[]string, err *error) {
	if r := recover(); r != nil {
		*bundle = nil
		*warnings = nil
		*err = NewBadInput(fmt.Sprintf("unexpected error: %v", r))
	}
}
