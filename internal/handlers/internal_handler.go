package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/digilinex/backend/internal/models"
	"github.com/digilinex/backend/internal/services"
)

// InternalHandler carries the collaborator-facing ingestion routes: team
// credits from the referral system and tier transitions from the purchase
// tracker. These sit behind the internal route group, not the user API.
type InternalHandler struct {
	ledger    *services.ClaimLedgerService
	accounts  *services.AccountService
	validator *services.ValidationHelper
}

func NewInternalHandler(ledger *services.ClaimLedgerService, accounts *services.AccountService) *InternalHandler {
	return &InternalHandler{
		ledger:    ledger,
		accounts:  accounts,
		validator: services.NewValidationHelper(),
	}
}

// TeamCredit ingests a propagated team credit
// @Summary Record a team credit
// @Description Append a team-origin credit to an account; no cooldown applies
// @Tags internal
// @Accept json
// @Produce json
// @Param request body models.TeamCreditRequest true "Team credit"
// @Success 201 {object} models.ClaimRecord
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /internal/team-credit [post]
func (h *InternalHandler) TeamCredit(w http.ResponseWriter, r *http.Request) {
	var req models.TeamCreditRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	record, err := h.ledger.RecordTeamCredit(r.Context(), req.AccountID, req.Amount, req.SourceUserID, req.SourceName)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[INTERNAL] Team credit failed for account %s: %v", req.AccountID, err)
		services.SendErrorResponse(w, "Failed to record team credit", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"claim":   record,
	})
}

// UpdateTier ingests a purchase-tracker tier transition
// @Summary Update account tier
// @Description Set the account tier; affects base reward only, never eligibility
// @Tags internal
// @Accept json
// @Produce json
// @Param request body models.TierUpdateRequest true "Tier update"
// @Success 200 {object} object{success=bool}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /internal/tier [post]
func (h *InternalHandler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	var req models.TierUpdateRequest

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if err := h.accounts.SetTier(r.Context(), req.AccountID, req.Tier); err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[INTERNAL] Tier update failed for account %s: %v", req.AccountID, err)
		services.SendErrorResponse(w, "Failed to update tier", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}
