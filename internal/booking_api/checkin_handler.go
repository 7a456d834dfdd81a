package booking_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-booking/internal/auth"
	"ms-booking/internal/checkin"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type CheckinHandler struct {
	Checkins *checkin.Service
	Logger   *logger.Logger
}

// Gate scanning is for operators, not passengers.
func staffOnly(w http.ResponseWriter, r *http.Request) bool {
	if isStaff(r.Context()) {
		return true
	}
	writeJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", "check-in requires a staff role"))
	return false
}

// CheckIn validates a boarding credential. A repeat scan returns 200 with
// code ALREADY_CHECKED_IN; it is a reportable outcome, not an error.
func (h *CheckinHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	if !staffOnly(w, r) {
		return
	}

	var req models.CheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	staffID := req.CheckedInBy
	if staffID == "" {
		staffID = auth.UserID(r.Context())
	}

	pass, err := h.Checkins.CheckIn(r.Context(), req.Credential, staffID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckIn: %v", err))
		h.writeError(w, "Check-in failed", err)
		return
	}

	message := "Checked in"
	response := utils.SuccessResponse(message, pass)
	if pass.AlreadyScanned {
		response.Message = "Already checked in"
		response.Code = "ALREADY_CHECKED_IN"
	}
	writeJSON(w, http.StatusOK, response)
}

// Search is the manual fallback lookup by ticket reference or passenger
// name for staff without a working scanner.
func (h *CheckinHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !staffOnly(w, r) {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Missing query", "q parameter is required"))
		return
	}

	items, err := h.Checkins.Search(r.Context(), query)
	if err != nil {
		h.writeError(w, "No matching passengers", err)
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Matching passengers", items))
}

func (h *CheckinHandler) writeError(w http.ResponseWriter, message string, err error) {
	mapped := classify(err)
	writeJSON(w, mapped.Status, utils.CodedErrorResponse(mapped.Code, message, err.Error()))
}
