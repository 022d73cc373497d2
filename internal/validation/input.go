package validation

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	// DefaultLogLimit is used when no limit query parameter is given
	DefaultLogLimit = 50
	// MaxLogLimit matches the log retention cap
	MaxLogLimit = 500
)

// Letters, digits, spaces, apostrophes, hyphens and dots, e.g. "Dungeon Master"
var namePattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} '.-]*$`)

// ValidateCharacterName validates a roster actor name from a URL
func ValidateCharacterName(name string) error {
	if len(name) == 0 || len(name) > 64 {
		return fmt.Errorf("character name must be 1-64 characters")
	}

	if !namePattern.MatchString(name) {
		return fmt.Errorf("character name can only contain letters, digits, spaces, apostrophes, dots and hyphens")
	}

	return nil
}

// ValidateLogLimit parses the limit query parameter; empty means the default
func ValidateLogLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultLogLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	if limit < 1 || limit > MaxLogLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", MaxLogLimit)
	}
	return limit, nil
}
