package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/digilinex/backend/internal/services"
)

type ReferralHandler struct {
	service   *services.ReferralService
	validator *services.ValidationHelper
}

func NewReferralHandler(service *services.ReferralService) *ReferralHandler {
	return &ReferralHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// GenerateQR renders a referral invite QR code
// @Summary Generate referral invite QR
// @Description Generate a shareable invite QR for the authenticated account
// @Tags referral
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{invite=string,qrImage=string}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /referral/qr [post]
func (h *ReferralHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	invite, qrImage, err := h.service.GenerateInviteQR(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, err.Error(), http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"invite":  invite,
		"qrImage": qrImage,
	})
}

// GetCode returns the account's referral code
// @Summary Get referral code
// @Description Shareable referral code for the authenticated account
// @Tags referral
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{referralCode=string}
// @Failure 401 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /referral/code [get]
func (h *ReferralHandler) GetCode(w http.ResponseWriter, r *http.Request) {
	accountID, ok := r.Context().Value("userID").(string)
	if !ok || accountID == "" {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	code, err := h.service.GetReferralCode(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
			return
		}
		services.SendErrorResponse(w, "Failed to fetch referral code", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":      true,
		"referralCode": code,
	})
}

// ResolveInvite resolves a scanned invite payload
// @Summary Resolve referral invite
// @Description Resolve a scanned invite payload to its referral data
// @Tags referral
// @Accept json
// @Produce json
// @Param request body object{invite=string} true "Invite resolution request"
// @Success 200 {object} object{accountId=string,referralCode=string}
// @Failure 400 {object} services.ErrorResponse
// @Router /referral/resolve [post]
func (h *ReferralHandler) ResolveInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Invite string `json:"invite" validate:"required"`
	}

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

	result, err := h.service.ResolveInvite(r.Context(), req.Invite)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    result,
	})
}
