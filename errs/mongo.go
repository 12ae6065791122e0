package errs

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server error codes that describe a rejected document rather than a failed server.
const (
	codeBadValue                  = 2
	codeTypeMismatch              = 14
	codeDocumentValidationFailure = 121
)

// ValidationError is returned by the persistence layer when a document does not satisfy
// the resource's field rules.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("validation failed for %q: %s", e.Path, e.Message)
	}
	return "validation failed: " + e.Message
}

// CastError is returned when a raw value cannot be converted to a field's type.
type CastError struct {
	Kind  string // Target kind, e.g. "integer"
	Value string // Raw value
	Err   error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cannot cast %q to %s", e.Value, e.Kind)
}

func (e *CastError) Unwrap() error {
	return e.Err
}

// FromMongo classifies an error coming from the database layer. Validation and cast
// failures are BadRequest, duplicate keys are Conflict, anything else is
// InternalServerError.
func FromMongo(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	switch {
	case isValidation(err), isCast(err):
		return ErrBadRequest.Wrap(err)
	case mongo.IsDuplicateKeyError(err):
		return ErrConflict.Wrap(err)
	}
	return ErrInternalServerError.Wrap(err)
}

func isValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return hasServerCode(err, codeDocumentValidationFailure)
}

func isCast(err error) bool {
	var ce *CastError
	if errors.As(err, &ce) {
		return true
	}
	if errors.Is(err, primitive.ErrInvalidHex) {
		return true
	}
	return hasServerCode(err, codeBadValue, codeTypeMismatch)
}

func hasServerCode(err error, codes ...int) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	for _, code := range codes {
		if se.HasErrorCode(code) {
			return true
		}
	}
	return false
}
