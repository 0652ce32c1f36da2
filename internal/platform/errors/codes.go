// Package errors provides the error taxonomy shared by the cart, checkout and
// order components.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeEmptyCart          Code = "EMPTY_CART"
	CodeConflict           Code = "CONFLICT"
	CodeCatalogUnavailable Code = "CATALOG_UNAVAILABLE"
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidInput, CodeEmptyCart:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeCatalogUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether an operation failing with this code may succeed
// when attempted again without any change from the caller.
func (c Code) Retryable() bool {
	return c == CodeCatalogUnavailable || c == CodeConflict
}
