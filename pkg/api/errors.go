package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/Sriram-PR/readerview/pkg/utils"
)

type apiError struct {
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}

// statusFor maps a pipeline error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrBadURL):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrDataIsNotString),
		errors.Is(err, utils.ErrFailedToExtract),
		errors.Is(err, utils.ErrMissingExtractionData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, utils.ErrUnsupportedContent):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, utils.ErrRobotsDisallowed):
		return http.StatusForbidden
	case errors.Is(err, utils.ErrSemaphoreTimeout), errors.Is(err, utils.ErrSandboxTerminated):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, utils.ErrClientHTTPError),
		errors.Is(err, utils.ErrServerHTTPError),
		errors.Is(err, utils.ErrOtherHTTPError),
		errors.Is(err, utils.ErrRetryFailed),
		errors.Is(err, utils.ErrNavigation),
		errors.Is(err, utils.ErrResponseBodyRead),
		errors.Is(err, utils.ErrRequestCreation):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := apiError{Message: err.Error()}
	if status != http.StatusBadRequest {
		body.Category = utils.CategorizeError(err)
	}
	writeJSON(w, status, body)
}
