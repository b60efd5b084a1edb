// Package parser converts operator-link wire frames to raw commands and back.
// Two formats are supported: csv (compact, for constrained links) and json.
package parser

import (
	"fmt"

	"QuadPilot/internal/model"
)

// Parser encodes and decodes raw commands for one wire format. Decoded commands
// are still untrusted: the validator, not the parser, enforces bounds.
type Parser interface {
	EncodeCommand(model.RawCommand) (string, error)
	DecodeCommand(string) (model.RawCommand, error)
}

// New returns the parser for the given format name (csv or json).
func New(format string) (Parser, error) {
	switch format {
	case "csv":
		return NewCSVParser(), nil
	case "json":
		return NewJSONParser(), nil
	default:
		return nil, fmt.Errorf("unknown wire format %q", format)
	}
}
