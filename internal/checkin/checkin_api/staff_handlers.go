package checkin_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gym-checkin/internal/auth"
	"gym-checkin/internal/models"
	"gym-checkin/internal/utils"

	"github.com/go-chi/chi/v5"
)

// validateRequest carries exactly one of the three ways a member can present a code.
type validateRequest struct {
	Code      string `json:"code"`
	QRPayload string `json:"qr_payload"`
	Token     string `json:"token"`
}

func (req validateRequest) presented() int {
	n := 0
	for _, v := range []string{req.Code, req.QRPayload, req.Token} {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// staffVenue returns the venue from the path when the caller may act for it.
func (h *Handler) staffVenue(w http.ResponseWriter, r *http.Request) (string, bool) {
	venueID := chi.URLParam(r, "venueID")
	principal := auth.PrincipalFrom(r.Context())
	if !principal.CanStaff(venueID) {
		userID := ""
		if principal != nil {
			userID = principal.UserID
		}
		h.Logger.LogSecurity("STAFF_DENIED", fmt.Sprintf("user %s is not staff at venue %s", userID, venueID))
		writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Not allowed to validate at this venue", "forbidden"))
		return "", false
	}
	return venueID, true
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	venueID, ok := h.staffVenue(w, r)
	if !ok {
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.presented() != 1 {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "provide exactly one of code, qr_payload or token"))
		return
	}

	var (
		record *models.CheckInRecord
		err    error
	)
	switch {
	case req.Code != "":
		record, err = h.Service.ValidateManualCode(r.Context(), venueID, req.Code)
	case req.QRPayload != "":
		record, err = h.Service.ValidateQRPayload(r.Context(), venueID, req.QRPayload)
	default:
		record, err = h.Service.ValidateAccessToken(r.Context(), venueID, req.Token)
	}
	if err != nil {
		h.writeServiceError(w, "Validate", err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("Validate: check-in %s registered at venue %s", record.ID, venueID))
	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Check-in registered", record))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectCode(w http.ResponseWriter, r *http.Request) {
	venueID, ok := h.staffVenue(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
			return
		}
	}

	codeID := chi.URLParam(r, "codeID")
	if err := h.Service.RejectCode(r.Context(), venueID, codeID, req.Reason); err != nil {
		h.writeServiceError(w, "RejectCode", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Check-in code rejected", nil))
}
