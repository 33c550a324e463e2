package session

import (
	"errors"
	"net/http"

	"github.com/gokatarajesh/fluentflow/internal/auth/jwt"
	"github.com/gokatarajesh/fluentflow/internal/exam"
	httperrors "github.com/gokatarajesh/fluentflow/pkg/http/errors"
)

// apiError is the transport view of a domain error.
type apiError struct {
	status  int
	code    string
	message string
	field   string
	state   string
}

func classify(err error) apiError {
	var te *exam.TransitionError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return apiError{status: http.StatusNotFound, code: httperrors.ErrCodeSessionNotFound, message: "Session not found"}
	case errors.As(err, &te):
		return apiError{status: http.StatusConflict, code: httperrors.ErrCodeInvalidTransition, message: te.Error(), state: string(te.Status)}
	case errors.Is(err, exam.ErrSessionClosed):
		return apiError{status: http.StatusConflict, code: httperrors.ErrCodeSessionClosed, message: "Session is closed"}
	case errors.Is(err, ErrUnknownDifficulty):
		return apiError{status: http.StatusBadRequest, code: httperrors.ErrCodeUnknownDifficulty, message: err.Error(), field: "difficulty"}
	case errors.Is(err, ErrInvalidRating):
		return apiError{status: http.StatusBadRequest, code: httperrors.ErrCodeInvalidRating, message: err.Error(), field: "rating"}
	case errors.Is(err, ErrUnknownIntent):
		return apiError{status: http.StatusBadRequest, code: httperrors.ErrCodeUnknownMessageType, message: err.Error(), field: "type"}
	case errors.Is(err, jwt.ErrExpiredToken):
		return apiError{status: http.StatusUnauthorized, code: httperrors.ErrCodeTokenExpired, message: "Token expired"}
	case errors.Is(err, jwt.ErrMissingToken):
		return apiError{status: http.StatusUnauthorized, code: httperrors.ErrCodeAuthenticationRequired, message: "Missing token"}
	case errors.Is(err, jwt.ErrInvalidToken), errors.Is(err, jwt.ErrSessionMismatch):
		return apiError{status: http.StatusUnauthorized, code: httperrors.ErrCodeInvalidToken, message: "Invalid token"}
	default:
		return apiError{status: http.StatusInternalServerError, code: httperrors.ErrCodeInternalError, message: "Internal server error"}
	}
}

func respondError(w http.ResponseWriter, err error) {
	e := classify(err)
	switch {
	case e.state != "":
		httperrors.RespondConflict(w, e.code, e.message, e.state)
	case e.field != "":
		httperrors.RespondValidationError(w, e.code, e.message, e.field)
	default:
		httperrors.RespondError(w, e.status, e.code, e.message)
	}
}
