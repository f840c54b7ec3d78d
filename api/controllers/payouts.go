package controllers

import (
	"net/http"

	"github.com/avelardi/atelia-backend/api/responses"
	"github.com/avelardi/atelia-backend/api/validators"
	"github.com/avelardi/atelia-backend/internal/payouts"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/stripe"
)

type payoutSetupRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Country      string `json:"country" validate:"required,len=2"`
	BusinessName string `json:"businessName" validate:"required,max=200"`
}

type payoutProcessRequest struct {
	// AmountCents zero pays out the full balance.
	AmountCents int64 `json:"amountCents" validate:"omitempty,min=0"`
}

// PayoutStatus reports processor readiness and whether a payout can run now.
func PayoutStatus(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := artisanFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.GetPayoutStatus(r.Context(), owner)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// PayoutSetup creates (or returns) the artisan's processor account.
func PayoutSetup(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := artisanFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body payoutSetupRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accountID, err := svc.SetupAccount(r.Context(), owner, stripe.AccountIdentity{
			Email:        body.Email,
			Country:      body.Country,
			BusinessName: body.BusinessName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"processorAccountId": accountID})
	}
}

// ProcessPayout runs a manual payout for the artisan's wallet.
func ProcessPayout(svc payouts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := artisanFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body payoutProcessRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		attempt, err := svc.ProcessPayout(r.Context(), payouts.ProcessInput{
			Owner:       owner,
			AmountCents: body.AmountCents,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, attempt)
	}
}
