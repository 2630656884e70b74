package config

import "fmt"

// AutoIndex controls what the session factory does with unique constraints
// declared on mapped entities
type AutoIndex string

const (
	AutoIndexNone     AutoIndex = "none"     // Leave the schema alone
	AutoIndexAssert   AutoIndex = "assert"   // Create missing constraints on startup
	AutoIndexValidate AutoIndex = "validate" // Fail startup when a constraint is missing
)

// ParseAutoIndex converts a string to AutoIndex
func ParseAutoIndex(s string) (AutoIndex, error) {
	switch s {
	case "", "none":
		return AutoIndexNone, nil
	case "assert":
		return AutoIndexAssert, nil
	case "validate":
		return AutoIndexValidate, nil
	default:
		return AutoIndexNone, fmt.Errorf("invalid auto_index %q: must be none, assert or validate", s)
	}
}

// Creates returns true if missing constraints should be created
func (a AutoIndex) Creates() bool {
	return a == AutoIndexAssert
}

// Checks returns true if the schema must be compared against metadata
func (a AutoIndex) Checks() bool {
	return a == AutoIndexAssert || a == AutoIndexValidate
}
