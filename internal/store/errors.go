package store

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/kalakari/storefront/internal/domain"
)

// translate turns a storage error into a domain error. Errors that already carry an
// HTTP code pass through unchanged.
func translate(err error, entity string, id any, message string) error {
	if err == nil {
		return nil
	}
	if domain.IsNotFound(err) {
		return domain.NotFound(entity, id)
	}
	var rejection *domain.OrderRejection
	if errors.As(err, &rejection) {
		return err
	}
	var gerr *goerrors.Error
	if errors.As(err, &gerr) && gerr.Code != 0 {
		return err
	}
	return domain.Internal(err, message)
}
