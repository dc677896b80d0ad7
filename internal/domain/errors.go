package domain

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Sentinel errors. The transport maps their category and code to a status.
var (
	ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
				WithCode(http.StatusUnauthorized).WithTextCode("INVALID_CREDENTIALS")
	ErrUnauthorized = goerrors.New("authentication required", goerrors.CategoryAuth).
			WithCode(http.StatusUnauthorized).WithTextCode("UNAUTHORIZED")
	ErrForbidden = goerrors.New("admin privileges required", goerrors.CategoryAuthz).
			WithCode(http.StatusForbidden).WithTextCode("FORBIDDEN")
	ErrEmailTaken = goerrors.New("email already registered", goerrors.CategoryConflict).
			WithCode(http.StatusConflict).WithTextCode("EMAIL_TAKEN")
	ErrSlugTaken = goerrors.New("category slug already exists", goerrors.CategoryConflict).
			WithCode(http.StatusConflict).WithTextCode("SLUG_TAKEN")
	ErrCategoryInUse = goerrors.New("category is referenced by products", goerrors.CategoryConflict).
				WithCode(http.StatusConflict).WithTextCode("CATEGORY_IN_USE")
)

// NotFound reports a missing entity.
func NotFound(entity string, id any) error {
	return goerrors.New(fmt.Sprintf("%s %v not found", entity, id), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(strings.ToUpper(entity) + "_NOT_FOUND")
}

// Invalid reports malformed input. fields maps a field name to its problem.
func Invalid(message string, fields map[string]string) error {
	return goerrors.NewValidationFromMap(message, fields).
		WithCode(http.StatusBadRequest).
		WithTextCode("VALIDATION_FAILED")
}

// InvalidTransition reports a status change the order state machine forbids.
func InvalidTransition(from, to OrderStatus) error {
	return goerrors.New(fmt.Sprintf("cannot change order status from %s to %s", from, to), goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode("INVALID_STATUS_TRANSITION")
}

// Internal wraps an unexpected storage failure. The message is safe to show.
func Internal(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode("INTERNAL")
}

// FromValidation converts ozzo validation errors into an Invalid error. Any other
// error is returned unchanged.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	flattenValidation("", verrs, fields)
	return Invalid("invalid request", fields)
}

func flattenValidation(prefix string, verrs validation.Errors, out map[string]string) {
	for name, ferr := range verrs {
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		var nested validation.Errors
		if errors.As(ferr, &nested) {
			flattenValidation(key, nested, out)
			continue
		}
		out[key] = ferr.Error()
	}
}

// IsNotFound reports a missing row, whether it comes from database/sql or from a
// categorised error.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	return HasCategory(err, goerrors.CategoryNotFound)
}

// HasCategory reports whether err carries category.
func HasCategory(err error, category goerrors.Category) bool {
	var gerr *goerrors.Error
	if errors.As(err, &gerr) {
		return gerr.Category == category
	}
	return false
}

// Problem reasons attached to a rejected order line.
const (
	ReasonNotFound          = "not_found"
	ReasonInsufficientStock = "insufficient_stock"
)

// LineProblem explains why one requested product cannot be ordered.
type LineProblem struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName,omitempty"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
	Reason      string    `json:"reason"`
	Message     string    `json:"message"`
}

// OrderRejection is returned when an order cannot be placed as composed. Nothing was
// written when it is returned.
type OrderRejection struct {
	Problems []LineProblem
}

func (e *OrderRejection) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	sort.Strings(msgs)
	return "order rejected: " + strings.Join(msgs, "; ")
}

// ProductMissing builds the problem for an unknown or inactive product.
func ProductMissing(id uuid.UUID, requested int) LineProblem {
	return LineProblem{
		ProductID: id,
		Requested: requested,
		Reason:    ReasonNotFound,
		Message:   fmt.Sprintf("product %s not found", id),
	}
}

// StockShort builds the problem for a product without enough stock.
func StockShort(p *Product, requested, available int) LineProblem {
	return LineProblem{
		ProductID:   p.ID,
		ProductName: p.Name,
		Requested:   requested,
		Available:   available,
		Reason:      ReasonInsufficientStock,
		Message:     fmt.Sprintf("insufficient stock for %s: requested %d, available %d", p.Name, requested, available),
	}
}
