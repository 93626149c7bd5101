// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"strings"

	"github.com/samber/oops"
)

// ParsedCommand represents a parsed command input.
type ParsedCommand struct {
	Name string // lower-cased first token, without a leading '/'
	Args string // unparsed argument string (preserves internal whitespace)
	Raw  string // original input
}

// Parse splits raw input into command name and arguments.
// A single leading '/' is dropped. Arguments preserve internal whitespace.
func Parse(input string) (*ParsedCommand, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(input), "/")
	if strings.TrimSpace(trimmed) == "" {
		return nil, oops.Code(CodeEmptyInput).Errorf("no command provided")
	}

	idx := strings.IndexAny(trimmed, " \t")
	if idx == -1 {
		return &ParsedCommand{
			Name: strings.ToLower(trimmed),
			Raw:  input,
		}, nil
	}

	return &ParsedCommand{
		Name: strings.ToLower(trimmed[:idx]),
		Args: strings.TrimLeft(trimmed[idx+1:], " \t"),
		Raw:  input,
	}, nil
}
