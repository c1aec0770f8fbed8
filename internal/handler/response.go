// internal/handler/response.go
package handler

import (
	"net/http"

	"github.com/go-chi/render"
)

// maxBodyBytes bounds request bodies; gateway callbacks are a few hundred bytes.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type messageResponse struct {
	Message    string `json:"message"`
	ReceiptURL string `json:"receipt_url,omitempty"`
	Data       any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string, details any) {
	respondJSON(w, r, status, errorResponse{Error: msg, Details: details})
}

// NotFound and MethodNotAllowed replace chi's plain-text defaults.
func NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, "Route not found", nil)
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusMethodNotAllowed, "Method not allowed", nil)
}
