package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avelardi/atelia-backend/api/middleware"
	"github.com/avelardi/atelia-backend/api/responses"
	"github.com/avelardi/atelia-backend/api/validators"
	"github.com/avelardi/atelia-backend/internal/disputes"
	"github.com/avelardi/atelia-backend/pkg/enums"
	pkgerrors "github.com/avelardi/atelia-backend/pkg/errors"
	"github.com/avelardi/atelia-backend/pkg/logger"
	"github.com/avelardi/atelia-backend/pkg/pagination"
)

type reportDisputeRequest struct {
	Type     string   `json:"type" validate:"required"`
	Reason   string   `json:"reason" validate:"required,max=500"`
	Details  *string  `json:"details,omitempty" validate:"omitempty,max=5000"`
	Evidence []string `json:"evidence,omitempty" validate:"omitempty,max=20,dive,url"`
}

type disputeStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

type disputeResolveRequest struct {
	Resolution string  `json:"resolution" validate:"required"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=5000"`
}

// ReportDispute files a dispute against an order and freezes its settlement.
func ReportDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := enums.ActorRole(middleware.RoleFromContext(r.Context()))
		actorRaw := middleware.UserIDFromContext(r.Context())
		if role == enums.ActorRoleArtisan {
			// Party checks run against the seller-profile id, not the login.
			actorRaw = middleware.ArtisanIDFromContext(r.Context())
		}
		actorID, err := uuid.Parse(actorRaw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid actor id"))
			return
		}

		var body reportDisputeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeType, err := enums.ParseDisputeType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute type"))
			return
		}

		var details *string
		if body.Details != nil {
			clean := validators.SanitizeString(*body.Details, 5000)
			details = &clean
		}

		dispute, err := svc.Report(r.Context(), disputes.ReportInput{
			OrderID:   orderID,
			ActorID:   actorID,
			ActorRole: role,
			Type:      disputeType,
			Reason:    validators.SanitizeString(body.Reason, 500),
			Details:   details,
			Evidence:  body.Evidence,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}

// GetDispute returns the dispute filed against an order.
func GetDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.GetByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// AdminUpdateDisputeStatus moves a dispute through the review workflow.
func AdminUpdateDisputeStatus(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adminID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid admin id"))
			return
		}

		var body disputeStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDisputeStatus(body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dispute status"))
			return
		}

		dispute, err := svc.UpdateStatus(r.Context(), disputes.UpdateStatusInput{
			OrderID: orderID,
			AdminID: adminID,
			Status:  status,
			Notes:   body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// AdminResolveDispute records the final decision and runs its financial branch.
func AdminResolveDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adminID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid admin id"))
			return
		}

		var body disputeResolveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resolution, err := enums.ParseDisputeResolution(body.Resolution)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid resolution"))
			return
		}

		dispute, err := svc.Resolve(r.Context(), disputes.ResolveInput{
			OrderID:    orderID,
			AdminID:    adminID,
			Resolution: resolution,
			Notes:      body.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// AdminListDisputes pages through disputes with optional filters.
func AdminListDisputes(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := disputeFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, cursor, err := svc.List(r.Context(), disputes.ListInput{
			Filter: *filter,
			Page: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "cursor": cursor})
	}
}

// AdminDisputeStatistics summarizes disputes for the admin dashboard.
func AdminDisputeStatistics(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := disputeFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.Statistics(r.Context(), *filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func disputeFilterFromQuery(r *http.Request) (*disputes.ListFilter, error) {
	filter := disputes.ListFilter{}
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := enums.ParseDisputeStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(query.Get("type")); raw != "" {
		disputeType, err := enums.ParseDisputeType(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type filter")
		}
		filter.Type = &disputeType
	}
	if raw := strings.TrimSpace(query.Get("reportedBy")); raw != "" {
		reporter, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reportedBy filter")
		}
		filter.ReportedBy = &reporter
	}
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from filter")
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to filter")
		}
		filter.To = &to
	}
	return &filter, nil
}
