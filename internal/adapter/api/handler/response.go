package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorBody is the JSON error shape the dashboard expects.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondWithJSON(logger *slog.Logger, w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("failed to marshal JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(logger *slog.Logger, w http.ResponseWriter, code int, msg, detail string) {
	respondWithJSON(logger, w, code, errorBody{Error: msg, Message: detail})
}
