package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/api/middleware"
	"github.com/avelardi/atelia-backend/api/responses"
	"github.com/avelardi/atelia-backend/api/validators"
	"github.com/avelardi/atelia-backend/internal/confirmation"
	"github.com/avelardi/atelia-backend/pkg/enums"
	pkgerrors "github.com/avelardi/atelia-backend/pkg/errors"
	"github.com/avelardi/atelia-backend/pkg/identity"
	"github.com/avelardi/atelia-backend/pkg/logger"
)

type confirmArtisanRequest struct {
	Leg   string  `json:"leg" validate:"required,oneof=pickup delivery"`
	Notes *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type confirmBuyerRequest struct {
	GuestEmail *string `json:"guestEmail,omitempty" validate:"omitempty,email"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// ConfirmArtisan records the seller's handoff acknowledgment and opens the
// buyer's confirmation window.
func ConfirmArtisan(svc confirmation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		artisanRaw := middleware.ArtisanIDFromContext(r.Context())
		if artisanRaw == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "artisan session required"))
			return
		}
		artisanID, err := identity.ParseArtisanID(artisanRaw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid artisan id"))
			return
		}
		userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
			return
		}

		var body confirmArtisanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		leg, err := enums.ParseConfirmationLeg(body.Leg)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid confirmation leg"))
			return
		}

		record, err := svc.ConfirmArtisan(r.Context(), confirmation.ConfirmArtisanInput{
			OrderID:   orderID,
			ArtisanID: artisanID,
			UserID:    userID,
			Leg:       leg,
			Notes:     body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// ConfirmBuyer records the buyer's receipt acknowledgment; on the second
// confirmation the order settles.
func ConfirmBuyer(svc confirmation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body confirmBuyerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := confirmation.ConfirmBuyerInput{
			OrderID:    orderID,
			GuestEmail: body.GuestEmail,
			Notes:      body.Notes,
		}
		if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
			buyerID, err := identity.ParseUserID(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id"))
				return
			}
			input.BuyerID = &buyerID
		}

		record, err := svc.ConfirmBuyer(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// GetConfirmation returns the order with its confirmation trail.
func GetConfirmation(svc confirmation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetConfirmation(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func orderIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "orderId")
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
