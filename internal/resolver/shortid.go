// Package resolver maps short ID prefixes typed on the command line to full
// entity UUIDs.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/grovekit/grove/pkg/tagstore"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
// Set to 6 characters to balance usability with collision avoidance.
const MinShortIDLength = 6

// ResolveID resolves a short ID prefix to a full UUID within one entity
// kind ("tag", "formula", "template", ...). Returns the full UUID if
// exactly one match is found.
//
// Three cases:
//  1. Input is already a full UUID (36 chars, 4 hyphens) - returned as-is
//  2. Input is too short (< 6 chars) - validation error
//  3. Input is a short prefix - scans for matches and returns a unique result
func ResolveID(ctx context.Context, store *tagstore.Client, entity, shortID string) (string, error) {
	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := store.ScanEntityIDs(ctx, entity, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for %s: %w", entity, err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Entity: entity, ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{Entity: entity, ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no entities matched the short ID.
type NotFoundError struct {
	Entity  string
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s found matching '%s'", e.Entity, e.ShortID)
}

// AmbiguousError indicates multiple entities matched the short ID.
type AmbiguousError struct {
	Entity  string
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d %ss", e.ShortID, len(e.Matches), e.Entity)
}

// FormatAmbiguousError creates a user-friendly message for ambiguous short
// IDs, listing up to 10 matching UUIDs.
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("Error: ambiguous short ID '%s' matches %d %ss:\n", err.ShortID, len(err.Matches), err.Entity)

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse a longer prefix to uniquely identify the " + err.Entity + "."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
