// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"regexp"
	"strings"

	"github.com/samber/oops"
)

const (
	// MaxNameLength is the maximum length for command labels.
	MaxNameLength = 64
)

// namePattern validates command labels: a letter followed by letters,
// digits or _-.:?! characters. Plugin-qualified labels contain a ':'.
var namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-.:?!]*$`)

// permissionPattern validates permission names such as "greeter.greet" or
// "plugbridge:greet".
var permissionPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+([.:][a-zA-Z0-9_\-]+)*$`)

// ValidateCommandName validates a command label.
func ValidateCommandName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return oops.Code(CodeInvalidName).Errorf("command name cannot be empty")
	}

	if len(trimmed) > MaxNameLength {
		return oops.Code(CodeInvalidName).
			With("length", len(trimmed)).
			With("max", MaxNameLength).
			Errorf("command name exceeds maximum length of %d", MaxNameLength)
	}

	if !namePattern.MatchString(trimmed) {
		return oops.Code(CodeInvalidName).
			With("name", trimmed).
			Errorf("command name must start with a letter and contain only letters, digits, or _-.:?!")
	}
	return nil
}

// ValidatePermissionName validates a permission name.
func ValidatePermissionName(name string) error {
	if !permissionPattern.MatchString(name) {
		return oops.Code(CodeInvalidPermission).
			With("permission", name).
			Errorf("invalid permission name %q", name)
	}
	return nil
}
