package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/abdusco/affiliated/internal"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type ErrorResponse struct {
	Error  string   `json:"error"`
	Kind   string   `json:"kind,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// ErrorHandler renders echo and domain errors as JSON. Storage failures and
// unknown errors are reported as a generic internal error.
func ErrorHandler(err error, c echo.Context) {
	code, body := errorResponse(err)

	event := zerolog.Ctx(c.Request().Context()).Warn()
	if code >= http.StatusInternalServerError {
		event = zerolog.Ctx(c.Request().Context()).Error()
	}
	event.
		Int("code", code).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Err(err).
		Msg("http error")

	if c.Response().Committed {
		return
	}

	if err := c.JSON(code, body); err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("failed to write error response")
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
		return httpErr.Code, ErrorResponse{Error: message}
	}

	kind := internal.Kind(err)
	switch kind {
	case internal.KindValidation:
		var validationErr *internal.ValidationError
		errors.As(err, &validationErr)
		return http.StatusBadRequest, ErrorResponse{
			Error:  validationErr.Error(),
			Kind:   string(kind),
			Fields: validationErr.Fields,
		}
	case internal.KindReference:
		return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: string(kind)}
	case internal.KindNotFound:
		return http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: string(kind)}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Kind:  string(internal.KindStorage),
		}
	}
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// queryID reads an optional positive integer query parameter.
func queryID(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

// queryStatus reads the optional status filter and rejects values outside
// allowed.
func queryStatus[T ~string](c echo.Context, allowed ...T) (*T, error) {
	raw := c.QueryParam("status")
	if raw == "" {
		return nil, nil
	}
	status := T(raw)
	if !lo.Contains(allowed, status) {
		names := lo.Map(allowed, func(s T, _ int) string { return string(s) })
		return nil, internal.NewValidationError(
			fmt.Sprintf("invalid fields: status (must be one of %s)", strings.Join(names, " ")),
			"status",
		)
	}
	return &status, nil
}
