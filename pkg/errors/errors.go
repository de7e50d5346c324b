// Package errors provides error handling for stortingsvotering.
//
// It re-exports github.com/cockroachdb/errors so every package gets stack
// traces, wrapping and user-facing hints from one import, and defines the
// sentinel errors shared across the ingestion, storage and analysis layers.
//
//	if err := store.SaveVotes(records); err != nil {
//	    return errors.Wrapf(err, "save session %s", records.SessionID)
//	}
//
//	if errors.Is(err, errors.ErrSessionNotFound) {
//	    // fetch the session first
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
	GetAllDetails = crdb.GetAllDetails
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

// Sentinel errors. Wrap them to add context; test with Is.
var (
	// ErrNoVotes indicates a session has no vote carrying any ballots.
	ErrNoVotes = New("no votes with ballots")

	// ErrSessionNotFound indicates no stored records exist for a session.
	ErrSessionNotFound = New("session not found")

	// ErrUpstreamUnavailable indicates the upstream data source could not be
	// reached after all retry attempts.
	ErrUpstreamUnavailable = New("upstream unavailable")

	// ErrInvalidConfig indicates a configuration value failed validation.
	ErrInvalidConfig = New("invalid configuration")
)

// IsMissingInput reports whether err means "no data for this session",
// which callers usually treat as skippable rather than fatal.
func IsMissingInput(err error) bool {
	return err != nil && IsAny(err, ErrNoVotes, ErrSessionNotFound)
}

// IsUpstreamUnavailable reports whether err is or wraps ErrUpstreamUnavailable.
func IsUpstreamUnavailable(err error) bool {
	return err != nil && Is(err, ErrUpstreamUnavailable)
}

// NewSessionNotFound builds an ErrSessionNotFound for a specific session id.
func NewSessionNotFound(sessionID string) error {
	return Wrapf(ErrSessionNotFound, "session %s", sessionID)
}
