package controllers

import (
	"net/http"

	"github.com/avelardi/atelia-backend/api/middleware"
	"github.com/avelardi/atelia-backend/api/responses"
	"github.com/avelardi/atelia-backend/api/validators"
	"github.com/avelardi/atelia-backend/internal/wallets"
	pkgerrors "github.com/avelardi/atelia-backend/pkg/errors"
	"github.com/avelardi/atelia-backend/pkg/identity"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/pagination"
)

// WalletInfo returns the artisan's wallet balance, aggregates and recent ledger.
func WalletInfo(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := artisanFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := svc.GetWalletInfo(r.Context(), owner, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, info)
	}
}

func artisanFromContext(r *http.Request) (identity.ArtisanID, error) {
	raw := middleware.ArtisanIDFromContext(r.Context())
	if raw == "" {
		return identity.ArtisanID{}, pkgerrors.New(pkgerrors.CodeForbidden, "artisan session required")
	}
	owner, err := identity.ParseArtisanID(raw)
	if err != nil {
		return identity.ArtisanID{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid artisan id")
	}
	return owner, nil
}
