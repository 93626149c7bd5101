// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"github.com/samber/oops"
)

// Error codes for plugin loading and lifecycle failures.
const (
	CodeConfigParse           = "CONFIG_PARSE"
	CodeNoConfigurationFile   = "NO_CONFIGURATION_FILE"
	CodeArtifactRead          = "ARTIFACT_READ"
	CodeUnsupportedAPIVersion = "UNSUPPORTED_API_VERSION"
	CodeDuplicatePlugin       = "DUPLICATE_PLUGIN"
	CodeMissingDependency     = "MISSING_DEPENDENCY"
	CodeInstantiationFailed   = "INSTANTIATION_FAILED"
	CodeEnableFailed          = "ENABLE_FAILED"
	CodeDisableFailed         = "DISABLE_FAILED"
)

// ErrDuplicatePlugin reports a registration whose key is already taken.
func ErrDuplicatePlugin(key, existingPath, rejectedPath string) error {
	return oops.In("plugin").
		Code(CodeDuplicatePlugin).
		With("plugin", key).
		With("existing_path", existingPath).
		With("rejected_path", rejectedPath).
		Errorf("plugin %q is already registered", key)
}

// ErrNoConfigurationFile reports an artifact that carries no descriptor.
func ErrNoConfigurationFile(path string) error {
	return oops.In("plugin").
		Code(CodeNoConfigurationFile).
		With("path", path).
		Errorf("no %s or %s found", PrimaryDescriptorFile, LegacyDescriptorFile)
}

// ErrConfigParse wraps a descriptor parse or validation failure.
func ErrConfigParse(file string, cause error) error {
	return oops.In("plugin").
		Code(CodeConfigParse).
		With("file", file).
		Wrapf(cause, "parse %s", file)
}

// ErrMissingDependency reports a hard dependency that resolves to no plugin.
func ErrMissingDependency(key, dependency string) error {
	return oops.In("plugin").
		Code(CodeMissingDependency).
		With("plugin", key).
		With("dependency", dependency).
		Errorf("plugin %q requires missing dependency %q", key, dependency)
}
