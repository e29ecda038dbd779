// Package fpath parses user file paths into a stable (owner, normalized path) identity.
//
// A path is absolute when it is addressed by callers ("/alice/docs/readme") and
// normalized when it is used as a storage key ("alice/docs/readme"). The first
// segment of the normalized form is always the owner.
package fpath

import (
	"path"
	"strings"

	"github.com/and161185/filekeeper/internal/errs"
)

const separator = "/"

// FilePath identifies a single file. The zero value is not a valid path.
type FilePath struct {
	owner      string
	normalized string
}

func fromSegments(parts []string) (FilePath, error) {
	if len(parts) < 2 {
		return FilePath{}, errs.Argument("invalid path, missing parts of the path")
	}
	return FilePath{
		owner:      parts[0],
		normalized: strings.Join(parts, separator),
	}, nil
}

// FromAbsolute parses a caller-supplied path of the form /{owner}/{segments...}.
func FromAbsolute(s string) (FilePath, error) {
	if !path.IsAbs(s) {
		return FilePath{}, errs.Argument("invalid path %q, should be absolute", s)
	}
	cleaned := path.Clean(s)
	return fromSegments(strings.Split(cleaned, separator)[1:])
}

// FromNormalized rebuilds a FilePath from its stored key form.
func FromNormalized(s string) (FilePath, error) {
	parts := strings.Split(s, separator)
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return FilePath{}, errs.Argument("invalid normalized path %q", s)
		}
	}
	return fromSegments(parts)
}

// Owner returns the user that owns the file.
func (p FilePath) Owner() string { return p.owner }

// Normalized returns the storage key form, owner segment first.
func (p FilePath) Normalized() string { return p.normalized }

// Absolute returns the caller-facing form.
func (p FilePath) Absolute() string { return separator + p.normalized }

// Segments returns the ordered path segments, owner first.
func (p FilePath) Segments() []string { return strings.Split(p.normalized, separator) }

// Base returns the last path segment.
func (p FilePath) Base() string { return path.Base(p.normalized) }

func (p FilePath) String() string { return p.Absolute() }
