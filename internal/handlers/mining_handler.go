package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/digilinex/backend/internal/services"
)

type MiningHandler struct {
	ledger    *services.ClaimLedgerService
	history   *services.HistoryService
	referrals *services.ReferralService
	validator *services.ValidationHelper
}

func NewMiningHandler(ledger *services.ClaimLedgerService, history *services.HistoryService, referrals *services.ReferralService) *MiningHandler {
	return &MiningHandler{
		ledger:    ledger,
		history:   history,
		referrals: referrals,
		validator: services.NewValidationHelper(),
	}
}

// GetState returns the mining state projection
// @Summary Get mining state
// @Description Current balance, streak, tier and claim window for the authenticated account
// @Tags mining
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.MiningState
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /mining/state [get]
func (h *MiningHandler) GetState(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	state, err := h.ledger.GetState(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		log.Printf("[MINING] Failed to load state for account %s: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to load mining state", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(state)
}

// Claim commits a daily claim
// @Summary Claim daily reward
// @Description Commit the daily claim for the authenticated account if the cooldown has elapsed
// @Tags mining
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.ClaimRecord
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /mining/claim [post]
func (h *MiningHandler) Claim(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	record, err := h.ledger.Claim(r.Context(), accountID)
	if err != nil {
		var cooldownErr *services.CooldownError
		switch {
		case errors.As(err, &cooldownErr):
			services.SendCooldownResponse(w, cooldownErr)
		case errors.Is(err, services.ErrAccountNotFound):
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		default:
			// Conflicts that survive the internal retries and any
			// unexpected store error surface the same generic message.
			log.Printf("[MINING] Claim failed for account %s: %v", accountID, err)
			services.SendErrorResponse(w, "Claim failed, try again", http.StatusInternalServerError, nil)
		}
		return
	}

	// Team credit propagation is a collaborator concern; its failure never
	// affects the committed claim.
	go func(claimerID string, amount int64) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.referrals.PropagateClaim(ctx, claimerID, amount); err != nil {
			log.Printf("[MINING] Team credit propagation failed for %s: %v", claimerID, err)
		}
	}(accountID, record.Amount)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"claim":   record,
	})
}

// History lists claim records in recent/older buckets
// @Summary Claim history
// @Description Paginated claim history bucketed into recent and older records
// @Tags mining
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Records per bucket (default: 20, max: 100)"
// @Success 200 {object} models.ClaimHistory
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /mining/history [get]
func (h *MiningHandler) History(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req struct {
		Limit int `validate:"omitempty,min=1,max=100"`
	}
	req.Limit = 20

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = l
		}
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	history, err := h.history.List(r.Context(), accountID, req.Limit)
	if err != nil {
		log.Printf("[MINING] Failed to fetch history for account %s: %v", accountID, err)
		services.SendErrorResponse(w, "Failed to fetch claim history", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(history)
}
