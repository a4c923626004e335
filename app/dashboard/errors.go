package dashboard

import (
	"context"
	"errors"
	"net/http"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/common"
)

func validationError(msg string) error {
	return common.NewUserVisibleError(http.StatusBadRequest, msg)
}

// userError turns an analytics failure into something the page can show.
// Engine messages win over fallback. Cancelled requests become ErrStale.
func userError(err error, fallback string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, common.ErrStale) {
		return common.ErrStale
	}
	if msg, ok := analytics.ApplicationMessage(err); ok {
		return common.NewUserVisibleError(http.StatusUnprocessableEntity, msg)
	}
	if analytics.IsTransport(err) {
		return common.NewUserVisibleError(http.StatusBadGateway, fallback)
	}
	return common.NewUserVisibleError(http.StatusUnprocessableEntity, fallback)
}
