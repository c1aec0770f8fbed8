// internal/handler/callback_handler.go
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"donation-service/internal/domain"

	"go.uber.org/zap"
)

type CallbackProcessor interface {
	ProcessSTKCallback(ctx context.Context, payload []byte) (*domain.CallbackOutcome, error)
}

type CallbackHandler struct {
	callbackUC CallbackProcessor
	logger     *zap.Logger
}

func NewCallbackHandler(callbackUC CallbackProcessor, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{callbackUC: callbackUC, logger: logger}
}

// HandleSTKCallback handles POST /callback. The work is done before the
// response is written so a failed save gets a 500 and Daraja retries.
func (h *CallbackHandler) HandleSTKCallback(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("received M-Pesa STK callback", zap.String("remote_addr", r.RemoteAddr))

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Warn("failed to read callback payload", zap.Error(err))
		respondJSON(w, r, http.StatusBadRequest, messageResponse{Message: "Invalid callback payload"})
		return
	}

	outcome, err := h.callbackUC.ProcessSTKCallback(r.Context(), payload)
	switch {
	case errors.Is(err, domain.ErrInvalidCallback):
		respondJSON(w, r, http.StatusBadRequest, messageResponse{Message: "Invalid callback payload"})
		return
	case errors.Is(err, domain.ErrIncompleteMetadata):
		respondJSON(w, r, http.StatusBadRequest, messageResponse{Message: "Incomplete donation data"})
		return
	case err != nil:
		respondJSON(w, r, http.StatusInternalServerError, messageResponse{Message: "Error saving donation"})
		return
	}

	switch outcome.Status {
	case domain.OutcomeSaved:
		respondJSON(w, r, http.StatusOK, messageResponse{
			Message:    "Donation saved and receipt generated.",
			ReceiptURL: outcome.ReceiptPath,
		})
	case domain.OutcomeDuplicate:
		respondJSON(w, r, http.StatusOK, messageResponse{Message: "Duplicate donation ignored."})
	default:
		respondJSON(w, r, http.StatusOK, messageResponse{Message: "Callback processed successfully."})
	}
}
