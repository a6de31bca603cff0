package checkin_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gym-checkin/internal/auth"
	"gym-checkin/internal/checkin"
	"gym-checkin/internal/checkin/qr"
	"gym-checkin/internal/logger"
	"gym-checkin/internal/middleware"
	"gym-checkin/internal/models"
	"gym-checkin/internal/notifier"
	"gym-checkin/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service  *checkin.CheckInService
	Notifier *notifier.Notifier
	Tokens   *auth.AccessTokens
	QR       *qr.QRGenerator
	Limiter  *middleware.UserRateLimiter
	Logger   *logger.Logger
}

func NewHandler(service *checkin.CheckInService, n *notifier.Notifier, tokens *auth.AccessTokens, qrGen *qr.QRGenerator, limiter *middleware.UserRateLimiter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewWithWriters(nil, nil)
	}
	if qrGen == nil {
		qrGen = qr.NewQRGenerator(0)
	}
	return &Handler{
		Service:  service,
		Notifier: n,
		Tokens:   tokens,
		QR:       qrGen,
		Limiter:  limiter,
		Logger:   log,
	}
}

// RegisterRoutes mounts the check-in routes. Callers wrap them in auth.Middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/checkin", func(r chi.Router) {
		if h.Limiter != nil {
			r.With(h.Limiter.Middleware).Post("/codes", h.GenerateCode)
		} else {
			r.Post("/codes", h.GenerateCode)
		}
		r.Get("/codes/{codeID}", h.GetCode)
		r.Get("/codes/{codeID}/qr.png", h.GetCodeQR)
		r.Get("/codes/{codeID}/token", h.GetCodeToken)
		r.Get("/codes/{codeID}/events", h.CodeEvents)
		r.Get("/events", h.UserEvents)
		r.Get("/eligibility", h.Eligibility)
		r.Get("/records/{checkInID}", h.GetRecord)

		r.Post("/venues/{venueID}/validate", h.Validate)
		r.Post("/venues/{venueID}/codes/{codeID}/reject", h.RejectCode)
	})
}

func (h *Handler) now() time.Time {
	if h.Service != nil && h.Service.Now != nil {
		return h.Service.Now().UTC()
	}
	return time.Now().UTC()
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeServiceError maps the check-in error taxonomy onto HTTP statuses.
// Anything unrecognised is logged and reported as retryable.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var notPermitted *checkin.NotPermittedError
	switch {
	case errors.As(err, &notPermitted):
		writeJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponseWithData(
			notPermitted.Reason,
			checkin.ErrCheckInNotPermitted.Error(),
			map[string]string{"limit": string(notPermitted.Limit)},
		))
	case errors.Is(err, checkin.ErrNoActivePlan):
		writeJSON(w, http.StatusForbidden, utils.ErrorResponse("No active plan", err.Error()))
	case errors.Is(err, checkin.ErrCodeExpiredOrInvalid):
		writeJSON(w, http.StatusGone, utils.ErrorResponse("Check-in code is no longer valid", err.Error()))
	case errors.Is(err, checkin.ErrUserNotFound), errors.Is(err, checkin.ErrVenueNotFound):
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", err.Error()))
	case errors.Is(err, checkin.ErrInvalidQRPayload),
		errors.Is(err, checkin.ErrInvalidAccessToken),
		errors.Is(err, checkin.ErrInvalidMethod):
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", err.Error()))
	case errors.Is(err, checkin.ErrVenueMismatch):
		writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Code belongs to another venue", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		writeJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Something went wrong, please try again", "internal error"))
	}
}

// ownedCode loads a code and checks the caller owns it. It writes the
// response itself when the code cannot be returned.
func (h *Handler) ownedCode(w http.ResponseWriter, r *http.Request, op string) (*models.CheckInCode, bool) {
	codeID := chi.URLParam(r, "codeID")
	code, err := h.Service.GetCode(r.Context(), codeID)
	if err != nil {
		h.writeServiceError(w, op, err)
		return nil, false
	}

	principal := auth.PrincipalFrom(r.Context())
	if code == nil || principal == nil || (code.UserID != principal.UserID && !principal.HasRole(auth.RoleAdmin)) {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Check-in code not found", "not found"))
		return nil, false
	}
	return code, true
}

type generateCodeRequest struct {
	VenueID string `json:"venue_id"`
}

func (h *Handler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req generateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.VenueID == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "venue_id is required"))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("GenerateCode: user=%s venue=%s", userID, req.VenueID))

	code, err := h.Service.GenerateCode(r.Context(), userID, req.VenueID)
	if err != nil {
		h.writeServiceError(w, "GenerateCode", err)
		return
	}
	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Check-in code generated", code))
}

func (h *Handler) GetCode(w http.ResponseWriter, r *http.Request) {
	code, ok := h.ownedCode(w, r, "GetCode")
	if !ok {
		return
	}
	view := *code
	view.Status = code.EffectiveStatus(h.now())
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Check-in code", view))
}

func (h *Handler) GetCodeQR(w http.ResponseWriter, r *http.Request) {
	code, ok := h.ownedCode(w, r, "GetCodeQR")
	if !ok {
		return
	}
	if !code.ConsumableAt(h.now()) {
		h.writeServiceError(w, "GetCodeQR", checkin.ErrCodeExpiredOrInvalid)
		return
	}

	png, err := h.QR.RenderPNG(code.QRPayload)
	if err != nil {
		h.writeServiceError(w, "GetCodeQR", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

type accessTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) GetCodeToken(w http.ResponseWriter, r *http.Request) {
	code, ok := h.ownedCode(w, r, "GetCodeToken")
	if !ok {
		return
	}
	if !code.ConsumableAt(h.now()) {
		h.writeServiceError(w, "GetCodeToken", checkin.ErrCodeExpiredOrInvalid)
		return
	}
	if h.Tokens == nil {
		writeJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Access tokens are not enabled", "unavailable"))
		return
	}

	token, err := h.Tokens.Issue(code)
	if err != nil {
		h.writeServiceError(w, "GetCodeToken", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Access token issued", accessTokenResponse{Token: token, ExpiresAt: code.ExpiresAt}))
}

func (h *Handler) Eligibility(w http.ResponseWriter, r *http.Request) {
	venueID := r.URL.Query().Get("venue_id")
	if venueID == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "venue_id is required"))
		return
	}

	eval, err := h.Service.Evaluate(r.Context(), auth.UserID(r.Context()), venueID, h.now())
	if err != nil {
		h.writeServiceError(w, "Eligibility", err)
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Eligibility evaluated", eval))
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	checkInID := chi.URLParam(r, "checkInID")
	record, err := h.Service.GetCheckInRecord(r.Context(), checkInID)
	if err != nil {
		h.writeServiceError(w, "GetRecord", err)
		return
	}

	principal := auth.PrincipalFrom(r.Context())
	if record == nil || principal == nil || (record.UserID != principal.UserID && !principal.CanStaff(record.VenueID)) {
		writeJSON(w, http.StatusNotFound, utils.ErrorResponse("Check-in not found", "not found"))
		return
	}
	writeJSON(w, http.StatusOK, utils.SuccessResponse("Check-in", record))
}
