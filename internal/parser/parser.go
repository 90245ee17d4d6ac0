// Package parser converts the raw arguments of entity server notifications
// into entity definitions, edits and session descriptions.
package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// Steps are forwarded by scripting layers that only know doubles.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// cleanArgs strips surrounding whitespace and quotes in place.
func cleanArgs(data []string) {
	for i, v := range data {
		data[i] = strings.Trim(strings.TrimSpace(v), `"`)
	}
}

func requireArgs(data []string, n int, what string) error {
	if len(data) < n {
		return fmt.Errorf("%s: insufficient data fields: got %d, need %d", what, len(data), n)
	}
	return nil
}

// Parser provides pure []string -> model conversion.
// It has zero external dependencies beyond a logger.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new parser with only a logger dependency
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}
