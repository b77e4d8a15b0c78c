package model

import "errors"

// Sentinel errors the core parse pipeline can return. Callers compare with
// errors.Is; the wrapped error (via fmt.Errorf("...: %w", err)) carries the
// underlying diagnostic (syntax position, offending line, ...).
var (
	// ErrParseFailure is returned when the text parser never attaches a
	// root plan node.
	ErrParseFailure = errors.New("xplain: unable to parse plan")

	// ErrJSONSyntax is returned when the tolerant JSON/YAML reader rejects
	// the input outright.
	ErrJSONSyntax = errors.New("xplain: invalid plan json")

	// ErrUnsupportedSortGroupsKind is returned when a Full-sort/Pre-sorted
	// Groups line matches neither known label.
	ErrUnsupportedSortGroupsKind = errors.New("xplain: unsupported sort groups kind")
)
