package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/kalakari/storefront/internal/domain"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

const internalMessage = "internal server error"

var categoryStatus = map[goerrors.Category]int{
	goerrors.CategoryValidation:       http.StatusBadRequest,
	goerrors.CategoryBadInput:         http.StatusBadRequest,
	goerrors.CategoryAuth:             http.StatusUnauthorized,
	goerrors.CategoryAuthz:            http.StatusForbidden,
	goerrors.CategoryNotFound:         http.StatusNotFound,
	goerrors.CategoryConflict:         http.StatusConflict,
	goerrors.CategoryRateLimit:        http.StatusTooManyRequests,
	goerrors.CategoryMethodNotAllowed: http.StatusMethodNotAllowed,
}

// mapFiberError lifts router errors such as 404 on an unknown route or 413 on an
// oversized body.
func mapFiberError(err error) *goerrors.Error {
	var ferr *fiber.Error
	if !errors.As(err, &ferr) {
		return nil
	}
	return goerrors.New(ferr.Message, goerrors.HTTPStatusToCategory(ferr.Code)).
		WithCode(ferr.Code).
		WithTextCode(goerrors.HTTPStatusToTextCode(ferr.Code))
}

// ErrorHandler renders err as an ErrorBody. Server errors are logged and replaced by
// a generic message; exposeInternal adds the cause for local debugging.
func ErrorHandler(logger *slog.Logger, exposeInternal bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var rejection *domain.OrderRejection
		if errors.As(err, &rejection) {
			return c.Status(http.StatusBadRequest).JSON(ErrorBody{
				Error:   "order cannot be placed",
				Code:    "ORDER_REJECTED",
				Details: map[string]any{"problems": rejection.Problems},
			})
		}

		mapped := goerrors.MapToError(err, []goerrors.ErrorMapper{mapFiberError})
		status := mapped.Code
		if status == 0 {
			status = http.StatusInternalServerError
			if s, ok := categoryStatus[mapped.Category]; ok {
				status = s
			}
		}

		body := ErrorBody{Error: mapped.Message, Code: mapped.TextCode}
		if body.Code == "" {
			body.Code = goerrors.HTTPStatusToTextCode(status)
		}
		if fields := mapped.ValidationMap(); len(fields) > 0 {
			body.Details = map[string]any{"fields": fields}
		}

		if status >= http.StatusInternalServerError {
			logger.ErrorContext(c.UserContext(), "request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("request_id", c.Locals("requestid")),
				slog.Any("error", err),
			)
			body = ErrorBody{Error: internalMessage, Code: "INTERNAL"}
			if exposeInternal {
				body.Details = map[string]any{"cause": err.Error()}
			}
		}
		return c.Status(status).JSON(body)
	}
}
