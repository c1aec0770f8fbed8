// internal/handler/donation_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"donation-service/internal/domain"

	"go.uber.org/zap"
)

type DonationInitiator interface {
	InitiateDonation(ctx context.Context, req domain.DonationRequest) (map[string]any, error)
}

// detailer is implemented by upstream errors that carry a diagnostic payload.
type detailer interface {
	Details() any
}

type DonationHandler struct {
	donationUC DonationInitiator
	logger     *zap.Logger
}

func NewDonationHandler(donationUC DonationInitiator, logger *zap.Logger) *DonationHandler {
	return &DonationHandler{donationUC: donationUC, logger: logger}
}

// Donate handles POST /donate.
func (h *DonationHandler) Donate(w http.ResponseWriter, r *http.Request) {
	var req domain.DonationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.logger.Debug("donation request body rejected", zap.Error(err))
		respondError(w, r, http.StatusBadRequest, "Valid phone and amount are required.", nil)
		return
	}

	ack, err := h.donationUC.InitiateDonation(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, messageResponse{
		Message: "STK push initiated. Check your phone to complete the donation.",
		Data:    ack,
	})
}

func (h *DonationHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidDonationRequest):
		respondError(w, r, http.StatusBadRequest, "Valid phone and amount are required.", nil)
	case errors.Is(err, domain.ErrInvalidPhone):
		respondError(w, r, http.StatusBadRequest, "Invalid phone number.", nil)
	case errors.Is(err, domain.ErrConfiguration):
		respondError(w, r, http.StatusInternalServerError, "Failed to initiate payment", nil)
	default:
		var details any = err.Error()
		var d detailer
		if errors.As(err, &d) && d.Details() != nil {
			details = d.Details()
		}
		respondError(w, r, http.StatusInternalServerError, "Failed to initiate payment", details)
	}
}
