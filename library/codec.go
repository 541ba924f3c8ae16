/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package library

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a game file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml", case-insensitively; empty
// means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromFilename guesses the format from a file extension.
func FormatFromFilename(name string) Format {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return FormatYAML
	}
	return FormatJSON
}

func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

func (f Format) Extension() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Encode writes g to w as a game file.
func Encode(w io.Writer, g *Game, f Format) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(g); err != nil {
			return fmt.Errorf("failed to encode game as yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(g); err != nil {
			return fmt.Errorf("failed to encode game as json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// Decode reads a game file and validates it. The ID and timestamps of the
// file are discarded so an imported game is always stored as a new one.
func Decode(r io.Reader, f Format) (*Game, error) {
	var g Game
	switch f {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&g); err != nil {
			return nil, fmt.Errorf("%w: failed to parse yaml: %w", ErrInvalidGame, err)
		}
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&g); err != nil {
			return nil, fmt.Errorf("%w: failed to parse json: %w", ErrInvalidGame, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return &Game{Title: g.Title, Categories: g.Categories}, nil
}
