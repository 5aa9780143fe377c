package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/smartlibrarian/ai/librarian"
	"github.com/hrygo/smartlibrarian/ai/observability/logging"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusOf(kind librarian.Kind) int {
	switch kind {
	case librarian.KindEmptyInput:
		return http.StatusBadRequest
	case librarian.KindUnauthorized:
		return http.StatusUnauthorized
	case librarian.KindNotFound:
		return http.StatusNotFound
	case librarian.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": kind, "message": text}.
func writeError(c echo.Context, err error) error {
	var le *librarian.Error
	if errors.As(err, &le) {
		status := statusOf(le.Kind)
		if status >= http.StatusInternalServerError {
			logging.FromContext(c.Request().Context()).Error("API: request failed", "kind", le.Kind.String(), "error", err)
		}
		return c.JSON(status, errorResponse{Error: le.Kind.String(), Message: le.Message})
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return c.JSON(he.Code, errorResponse{Error: "bad_request", Message: msg})
	}

	logging.FromContext(c.Request().Context()).Error("API: unexpected error", "error", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal", Message: "internal error"})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: message})
}
