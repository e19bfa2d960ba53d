package connstr

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below via errors.Is.
var (
	ErrMalformed          = errors.New("malformed connection string")
	ErrUnsupportedKeyword = errors.New("unsupported keyword")
)

// SyntaxError reports a connection string that violates the grammar.
// Offset is the character index at which the malformed construct began.
type SyntaxError struct {
	Offset int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("format of the connection string does not conform to specification starting at index %d", e.Offset)
}

// Is reports whether target is ErrMalformed.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrMalformed
}

// KeywordError reports a keyword that is not valid after synonym resolution.
// Keyword holds the case-folded key as it appeared in the input.
type KeywordError struct {
	Keyword string
}

func (e *KeywordError) Error() string {
	return fmt.Sprintf("keyword not supported: %q", e.Keyword)
}

// Is reports whether target is ErrUnsupportedKeyword.
func (e *KeywordError) Is(target error) bool {
	return target == ErrUnsupportedKeyword
}
