package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	"github.com/dmitrijs2005/gophstore/internal/server/services"
)

// APIError is an error with a fixed HTTP rendering.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string { return e.Message }

func newAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

var (
	errBadPayload   = newAPIError(http.StatusBadRequest, "bad_request", "invalid payload")
	errBadBearer    = newAPIError(http.StatusUnauthorized, "unauthorized", "missing or invalid access token")
	errBadLogin     = newAPIError(http.StatusUnauthorized, "unauthorized", "invalid email or password")
	errBadRefresh   = newAPIError(http.StatusUnauthorized, "unauthorized", "invalid refresh token")
	errRateLimited  = newAPIError(http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
	errInternal     = newAPIError(http.StatusInternalServerError, "internal_error", "internal error")
	errNotFound     = newAPIError(http.StatusNotFound, "not_found", "not found")
	errEmailTaken   = newAPIError(http.StatusConflict, "already_exists", "email is already registered")
	errAlreadyExist = newAPIError(http.StatusConflict, "already_exists", "already exists")
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error     errorBody `json:"error"`
	RequestID string    `json:"request_id"`
}

// toAPIError maps service errors onto their HTTP rendering. Anything it does
// not recognise becomes a 500 with a generic message.
func toAPIError(err error) *APIError {
	var (
		apiErr   *APIError
		httpErr  *echo.HTTPError
		resetErr *services.ResetTokenError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &resetErr):
		return newAPIError(http.StatusBadRequest, "invalid_reset_token", resetErr.Reason.Message())
	case errors.Is(err, common.ErrorValidation):
		return newAPIError(http.StatusBadRequest, "validation_error", validationMessage(err))
	case errors.Is(err, common.ErrorAlreadyExists):
		return errAlreadyExist
	case errors.Is(err, common.ErrorUnauthorized):
		return errBadBearer
	case errors.Is(err, common.ErrorNotFound):
		return errNotFound
	case errors.As(err, &httpErr):
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return newAPIError(httpErr.Code, statusCode(httpErr.Code), msg)
	}
	return errInternal
}

// validationMessage joins the messages of every rejected field.
func validationMessage(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", "; ")
}

func statusCode(status int) string {
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// errorHandler renders every handler error in the common envelope.
func errorHandler(log logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		apiErr := toAPIError(err)
		if apiErr.Status >= http.StatusInternalServerError {
			log.Error(c.Request().Context(), "request failed",
				"method", c.Request().Method, "path", c.Path(), "request_id", requestID(c), "error", err)
		}

		body := errorResponse{Error: errorBody{Code: apiErr.Code, Message: apiErr.Message}, RequestID: requestID(c)}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(apiErr.Status)
		} else {
			err = c.JSON(apiErr.Status, body)
		}
		if err != nil {
			log.Error(c.Request().Context(), "writing error response failed", "error", err)
		}
	}
}
