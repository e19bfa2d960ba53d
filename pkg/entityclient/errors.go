package entityclient

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraParametersWithName is returned when "name" is combined with
	// other keywords.
	ErrExtraParametersWithName = errors.New("other keywords are not allowed when the 'name' keyword is specified")

	// ErrInvalidNamedConnection is returned when a named connection is
	// missing or does not use the entity client provider.
	ErrInvalidNamedConnection = errors.New("the specified named connection is either not found in the configuration, not intended to be used with the entity client provider, or not valid")

	ErrConnectionOpen     = errors.New("the connection is open")
	ErrConnectionClosed   = errors.New("the connection is closed")
	ErrNoConnectionString = errors.New("the connection string has not been initialized")
	ErrPoolClosed         = errors.New("the connection pool is closed")
)

// NestedNamedConnectionError is returned when a named connection string
// itself contains the "name" keyword.
type NestedNamedConnectionError struct {
	Name string
}

func (e *NestedNamedConnectionError) Error() string {
	return fmt.Sprintf("a named connection string cannot refer to another named connection: %q", e.Name)
}

// MissingKeywordError is returned when a required keyword is absent or blank.
type MissingKeywordError struct {
	Keyword string
}

func (e *MissingKeywordError) Error() string {
	return fmt.Sprintf("some required information is missing from the connection string: the %q keyword is always required", e.Keyword)
}
