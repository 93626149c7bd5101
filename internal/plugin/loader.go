// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"archive/zip"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Outcome classifies what happened to one artifact during discovery.
type Outcome uint8

// Discovery outcomes.
const (
	OutcomeLoadedPrimary Outcome = iota
	OutcomeLoadedLegacy
	OutcomeConfigParseError
	OutcomeNoConfigurationFile
	OutcomeReadError
	OutcomeUnsupportedAPIVersion
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeLoadedPrimary:
		return "loaded_primary"
	case OutcomeLoadedLegacy:
		return "loaded_legacy"
	case OutcomeConfigParseError:
		return "config_parse_error"
	case OutcomeNoConfigurationFile:
		return "no_configuration_file"
	case OutcomeReadError:
		return "read_error"
	case OutcomeUnsupportedAPIVersion:
		return "unsupported_api_version"
	default:
		return "unknown"
	}
}

// Loaded reports whether the artifact produced a plugin.
func (o Outcome) Loaded() bool {
	return o == OutcomeLoadedPrimary || o == OutcomeLoadedLegacy
}

// Discovered is the result of reading one artifact.
type Discovered struct {
	Path    string
	Outcome Outcome
	Plugin  *Plugin
	Err     error
}

// DefaultPatterns are the artifact file patterns scanned when none are configured.
var DefaultPatterns = []string{"*.jar", "*.zip"}

// UpdateDirName is the staging directory inside the plugins directory.
const UpdateDirName = "update"

// Loader discovers plugin artifacts in a directory and parses their descriptors.
type Loader struct {
	pluginsDir string
	updateDir  string
	patterns   []string
	globs      []glob.Glob
	apiRange   string
	constraint *semver.Constraints
	strictAPI  bool
	logger     *slog.Logger
}

// LoaderOption configures the Loader.
type LoaderOption func(*Loader)

// WithPatterns replaces the artifact file patterns.
func WithPatterns(patterns ...string) LoaderOption {
	return func(l *Loader) {
		l.patterns = patterns
	}
}

// WithAPIVersion checks each descriptor's api-version against a semver
// constraint. Mismatches are logged; with strict set they also exclude the plugin.
func WithAPIVersion(constraint string, strict bool) LoaderOption {
	return func(l *Loader) {
		l.apiRange = constraint
		l.strictAPI = strict
	}
}

// WithUpdateDir overrides the staging directory used by ApplyUpdates.
func WithUpdateDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.updateDir = dir
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader for pluginsDir.
func NewLoader(pluginsDir string, opts ...LoaderOption) (*Loader, error) {
	l := &Loader{
		pluginsDir: pluginsDir,
		updateDir:  filepath.Join(pluginsDir, UpdateDirName),
		patterns:   DefaultPatterns,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, pattern := range l.patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.In("plugin").With("pattern", pattern).Wrapf(err, "compile artifact pattern")
		}
		l.globs = append(l.globs, g)
	}

	if strings.TrimSpace(l.apiRange) != "" {
		c, err := semver.NewConstraint(l.apiRange)
		if err != nil {
			return nil, oops.In("plugin").With("constraint", l.apiRange).Wrapf(err, "parse api version constraint")
		}
		l.constraint = c
	}
	return l, nil
}

// PluginsDir returns the scanned directory.
func (l *Loader) PluginsDir() string { return l.pluginsDir }

// Discover reads every artifact in the plugins directory. Artifacts that fail
// to load are reported with their outcome and logged; they never stop the scan.
// A missing plugins directory yields no results.
func (l *Loader) Discover(ctx context.Context) ([]Discovered, error) {
	entries, err := os.ReadDir(l.pluginsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, oops.In("plugin").Code(CodeArtifactRead).With("dir", l.pluginsDir).Wrapf(err, "read plugins directory")
	}

	var results []Discovered
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, oops.In("plugin").Wrap(err)
		}
		if !l.isCandidate(entry) {
			continue
		}

		d := l.Load(filepath.Join(l.pluginsDir, entry.Name()))
		l.logOutcome(d)
		results = append(results, d)
	}
	return results, nil
}

func (l *Loader) isCandidate(entry fs.DirEntry) bool {
	name := entry.Name()
	if strings.HasPrefix(name, ".") {
		return false
	}
	if entry.IsDir() {
		return name != UpdateDirName && name != filepath.Base(l.updateDir)
	}
	return l.Matches(name)
}

// Matches reports whether a file name matches one of the artifact patterns.
func (l *Loader) Matches(name string) bool {
	for _, g := range l.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Load reads and parses the artifact at path.
func (l *Loader) Load(path string) Discovered {
	primaryData, legacyData, err := ReadArtifact(path)
	if err != nil {
		return Discovered{Path: path, Outcome: OutcomeReadError, Err: err}
	}
	if primaryData == nil && legacyData == nil {
		return Discovered{Path: path, Outcome: OutcomeNoConfigurationFile, Err: ErrNoConfigurationFile(path)}
	}

	var primary *PrimaryDescriptor
	var legacy *LegacyDescriptor
	if primaryData != nil {
		if primary, err = ParsePrimary(primaryData); err != nil {
			return Discovered{Path: path, Outcome: OutcomeConfigParseError, Err: ErrConfigParse(PrimaryDescriptorFile, err)}
		}
	}
	if legacyData != nil {
		if legacy, err = ParseLegacy(legacyData); err != nil {
			return Discovered{Path: path, Outcome: OutcomeConfigParseError, Err: ErrConfigParse(LegacyDescriptorFile, err)}
		}
	}

	p, err := FromDescriptors(path, primary, legacy)
	if err != nil {
		return Discovered{Path: path, Outcome: OutcomeConfigParseError, Err: err}
	}

	if err := l.checkAPIVersion(p); err != nil {
		return Discovered{Path: path, Outcome: OutcomeUnsupportedAPIVersion, Plugin: p, Err: err}
	}

	outcome := OutcomeLoadedLegacy
	if p.Dialect == DialectPrimary {
		outcome = OutcomeLoadedPrimary
	}
	return Discovered{Path: path, Outcome: outcome, Plugin: p}
}

func (l *Loader) checkAPIVersion(p *Plugin) error {
	if l.constraint == nil {
		return nil
	}
	declared := ""
	if p.Primary != nil {
		declared = p.Primary.APIVersion
	}
	if declared == "" && p.Legacy != nil {
		declared = p.Legacy.APIVersion
	}
	if declared == "" {
		return nil
	}

	v, err := semver.NewVersion(declared)
	if err != nil {
		l.logger.Warn("plugin declares unparseable api-version",
			"plugin", p.Key,
			"api_version", declared,
			"error", err)
		return nil
	}
	if l.constraint.Check(v) {
		return nil
	}

	l.logger.Warn("plugin api-version outside supported range",
		"plugin", p.Key,
		"api_version", declared,
		"supported", l.apiRange,
		"strict", l.strictAPI)
	if !l.strictAPI {
		return nil
	}
	return oops.In("plugin").
		Code(CodeUnsupportedAPIVersion).
		With("plugin", p.Key).
		With("api_version", declared).
		With("supported", l.apiRange).
		Errorf("api-version %s does not satisfy %s", declared, l.apiRange)
}

func (l *Loader) logOutcome(d Discovered) {
	switch d.Outcome {
	case OutcomeLoadedPrimary, OutcomeLoadedLegacy:
		l.logger.Info("discovered plugin",
			"plugin", d.Plugin.Key,
			"version", d.Plugin.Version,
			"dialect", d.Plugin.Dialect.String(),
			"path", d.Path)
	case OutcomeNoConfigurationFile:
		l.logger.Warn("skipping artifact without descriptor", "path", d.Path)
	case OutcomeConfigParseError:
		l.logger.Warn("skipping plugin with invalid descriptor", "path", d.Path, "error", d.Err)
	case OutcomeReadError:
		l.logger.Error("failed to read plugin artifact", "path", d.Path, "error", d.Err)
	case OutcomeUnsupportedAPIVersion:
		l.logger.Warn("skipping plugin with unsupported api-version", "path", d.Path, "error", d.Err)
	}
}

// ReadArtifact returns the raw primary and legacy descriptors from a zip
// archive or a directory. A descriptor that is absent is returned as nil.
func ReadArtifact(path string) (primary, legacy []byte, err error) {
	fsys, closeFn, err := OpenArtifact(path)
	if err != nil {
		return nil, nil, err
	}
	defer closeFn()

	if primary, err = readOptional(fsys, PrimaryDescriptorFile); err != nil {
		return nil, nil, oops.In("plugin").Code(CodeArtifactRead).With("path", path).Wrap(err)
	}
	if legacy, err = readOptional(fsys, LegacyDescriptorFile); err != nil {
		return nil, nil, oops.In("plugin").Code(CodeArtifactRead).With("path", path).Wrap(err)
	}
	return primary, legacy, nil
}

// OpenArtifact opens a plugin artifact as a file system. The returned close
// function must be called when the file system is no longer needed.
func OpenArtifact(path string) (fs.FS, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, oops.In("plugin").Code(CodeArtifactRead).With("path", path).Wrap(err)
	}
	if info.IsDir() {
		return os.DirFS(path), func() {}, nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, oops.In("plugin").Code(CodeArtifactRead).With("path", path).Wrapf(err, "open archive")
	}
	return zr, func() { _ = zr.Close() }, nil
}

func readOptional(fsys fs.FS, name string) ([]byte, error) {
	data, err := fs.ReadFile(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err //nolint:wrapcheck // wrapped by caller
}
