// Package datadir expands the |DataDirectory| placeholder found at the start
// of file-path values in connection strings.
package datadir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapconn/pkg/connstr"
)

// Placeholder is the case-insensitive prefix replaced by the data directory.
const Placeholder = "|datadirectory|"

// ErrInvalidDataDirectory is returned when the configured root is not a
// usable path.
var ErrInvalidDataDirectory = errors.New("the data directory is not a valid path")

// InvalidValueError is returned when an expanded value escapes the data
// directory.
type InvalidValueError struct {
	Keyword string
	Value   string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for keyword %q: %q resolves outside the data directory", e.Keyword, e.Value)
}

// HasPlaceholder reports whether value starts with the placeholder,
// ignoring case.
func HasPlaceholder(value string) bool {
	return len(value) >= len(Placeholder) && strings.EqualFold(value[:len(Placeholder)], Placeholder)
}

// Expander substitutes the placeholder with Root. An empty Root means the
// process working directory.
type Expander struct {
	Root string
}

// Expand returns value with a leading placeholder replaced by the root
// directory. Values without the placeholder are returned unchanged. Either
// '/' or '\' may separate the placeholder from the rest of the path.
func (e Expander) Expand(keyword, value string) (string, error) {
	if !HasPlaceholder(value) {
		return value, nil
	}

	root, err := e.root()
	if err != nil {
		return "", err
	}

	rest := value[len(Placeholder):]
	if rest != "" && (rest[0] == '/' || rest[0] == '\\') {
		rest = rest[1:]
	}
	rest = filepath.FromSlash(strings.ReplaceAll(rest, `\`, "/"))
	if filepath.IsAbs(rest) || filepath.VolumeName(rest) != "" {
		return "", &InvalidValueError{Keyword: keyword, Value: value}
	}

	full := filepath.Join(root, rest)
	if !within(root, full) {
		return "", &InvalidValueError{Keyword: keyword, Value: value}
	}
	return full, nil
}

// ExpandOptions expands the values of the given keywords that are present in
// opts. Absent keywords are left out of the result.
func (e Expander) ExpandOptions(opts *connstr.Options, keywords ...string) (map[string]string, error) {
	out := make(map[string]string, len(keywords))
	for _, kw := range keywords {
		v, ok := opts.Lookup(kw)
		if !ok {
			continue
		}
		expanded, err := e.Expand(kw, v)
		if err != nil {
			return nil, err
		}
		out[kw] = expanded
	}
	return out, nil
}

func (e Expander) root() (string, error) {
	root := e.Root
	if strings.ContainsRune(root, 0) {
		return "", ErrInvalidDataDirectory
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidDataDirectory, err)
		}
		root = wd
	}
	for _, elem := range strings.FieldsFunc(root, isSeparator) {
		if elem == ".." {
			return "", fmt.Errorf("%w: %q contains a parent reference", ErrInvalidDataDirectory, root)
		}
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidDataDirectory, err)
	}
	return abs, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}
