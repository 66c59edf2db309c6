package types

import (
	"errors"
	"net/http"

	appErr "github.com/neoncad/engine/pkg/errors"
)

// FromAppError converts err to the envelope error. Errors without a code
// are reported as internal without their text.
func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	var e *appErr.AppError
	if errors.As(err, &e) {
		return &APIError{Code: string(e.Code), Message: e.Message}
	}
	return &APIError{Code: string(appErr.CodeInternal), Message: "internal error"}
}

// HTTPStatus maps an error code to the response status.
func HTTPStatus(err error) int {
	switch appErr.CodeOf(err) {
	case appErr.CodeInvalid, appErr.CodeInvalidGeometry:
		return http.StatusBadRequest
	case appErr.CodeNotFound:
		return http.StatusNotFound
	case appErr.CodeConflict, appErr.CodeAlreadyExists:
		return http.StatusConflict
	case appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	case appErr.CodeDeadline:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
