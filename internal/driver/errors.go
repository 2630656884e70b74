package driver

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedStatement is returned when a driver cannot execute a statement type
	ErrUnsupportedStatement = errors.New("statement not supported by driver")

	// ErrTransactionClosed is returned when a finished transaction is used again
	ErrTransactionClosed = errors.New("transaction already closed")

	// ErrDriverClosed is returned after Close
	ErrDriverClosed = errors.New("driver is closed")
)

// Status codes the mapper inspects
const (
	CodeConstraintValidationFailed = "Neo.ClientError.Schema.ConstraintValidationFailed"
	CodeConstraintCreationFailed   = "Neo.ClientError.Schema.ConstraintCreationFailed"
	CodeSyntaxError                = "Neo.ClientError.Statement.SyntaxError"
	CodeEntityNotFound             = "Neo.ClientError.Statement.EntityNotFound"
	CodeUnknownPropertyKey         = "Neo.ClientNotification.Statement.UnknownPropertyKeyWarning"
)

// CypherError is a failure reported by the database for a statement
type CypherError struct {
	Code        string
	Description string
}

// NewCypherError creates a CypherError
func NewCypherError(code, description string) *CypherError {
	return &CypherError{Code: code, Description: description}
}

func (e *CypherError) Error() string {
	return fmt.Sprintf("Cypher execution failed with code '%s': %s.", e.Code, e.Description)
}

// IsConstraintViolation reports whether err carries a uniqueness violation
func IsConstraintViolation(err error) bool {
	var ce *CypherError
	return errors.As(err, &ce) && ce.Code == CodeConstraintValidationFailed
}
