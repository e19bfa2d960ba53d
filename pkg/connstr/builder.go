package connstr

import (
	"strings"
	"unicode"
)

// Builder assembles a connection string one pair at a time, escaping keys
// and quoting values so that Parse returns the appended pairs.
//
// The zero value is ready to use.
type Builder struct {
	sb strings.Builder
}

// Append adds a key/value pair.
func (b *Builder) Append(key, value string) *Builder {
	if b.sb.Len() > 0 {
		b.sb.WriteByte(';')
	}
	b.sb.WriteString(strings.ReplaceAll(key, "=", "=="))
	b.sb.WriteByte('=')
	b.sb.WriteString(QuoteValue(value))
	return b
}

// String returns the assembled connection string.
func (b *Builder) String() string {
	return b.sb.String()
}

// Len returns the length in bytes of the assembled connection string.
func (b *Builder) Len() int {
	return b.sb.Len()
}

// Reset clears the builder.
func (b *Builder) Reset() {
	b.sb.Reset()
}

// QuoteValue returns value in the form it takes inside a connection string.
// Plain values are written as-is. A value holding a double quote and no
// single quote is wrapped in single quotes; anything else that needs quoting
// is wrapped in double quotes with embedded double quotes doubled.
func QuoteValue(value string) string {
	if !needsQuoting(value) {
		return value
	}
	if strings.ContainsRune(value, '"') && !strings.ContainsRune(value, '\'') {
		return "'" + value + "'"
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// needsQuoting reports whether a value contains a quote, '=', ';',
// whitespace or a control character.
func needsQuoting(value string) bool {
	for _, r := range value {
		switch {
		case r == '"', r == '\'', r == '=', r == ';':
			return true
		case unicode.IsSpace(r), unicode.IsControl(r):
			return true
		}
	}
	return false
}
