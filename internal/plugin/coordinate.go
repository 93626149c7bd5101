// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/samber/oops"
)

// coordinateLexer tokenizes "group:artifact[:extension[:classifier]]:version".
var coordinateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Segment", Pattern: `[A-Za-z0-9_][A-Za-z0-9_.+-]*`},
	{Name: "Colon", Pattern: `:`},
	{Name: "whitespace", Pattern: `\s+`},
})

// coordinateAST is the raw parse of a library coordinate.
type coordinateAST struct {
	Parts []string `parser:"@Segment (Colon @Segment)+"`
}

var coordinateParser = participle.MustBuild[coordinateAST](
	participle.Lexer(coordinateLexer),
)

// Coordinate is a parsed library coordinate.
type Coordinate struct {
	Group      string
	Artifact   string
	Extension  string
	Classifier string
	Version    string
}

// ParseCoordinate parses a library coordinate in one of the forms
// group:artifact:version, group:artifact:extension:version or
// group:artifact:extension:classifier:version.
func ParseCoordinate(s string) (Coordinate, error) {
	ast, err := coordinateParser.ParseString("", strings.TrimSpace(s))
	if err != nil {
		return Coordinate{}, oops.In("plugin").With("coordinate", s).Wrapf(err, "parse library coordinate")
	}
	p := ast.Parts
	switch len(p) {
	case 3:
		return Coordinate{Group: p[0], Artifact: p[1], Version: p[2]}, nil
	case 4:
		return Coordinate{Group: p[0], Artifact: p[1], Extension: p[2], Version: p[3]}, nil
	case 5:
		return Coordinate{Group: p[0], Artifact: p[1], Extension: p[2], Classifier: p[3], Version: p[4]}, nil
	default:
		return Coordinate{}, oops.In("plugin").With("coordinate", s).
			Errorf("library coordinate needs 3 to 5 segments, got %d", len(p))
	}
}

// FileName returns the artifact file base name, e.g. "gson-2.10.1".
func (c Coordinate) FileName() string {
	name := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return name
}

// String renders the coordinate back in its canonical form.
func (c Coordinate) String() string {
	parts := []string{c.Group, c.Artifact}
	if c.Extension != "" {
		parts = append(parts, c.Extension)
		if c.Classifier != "" {
			parts = append(parts, c.Classifier)
		}
	}
	return fmt.Sprintf("%s:%s", strings.Join(parts, ":"), c.Version)
}
