package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/V4T54L/safewatch/internal/adapter/repository/filestore"
)

// AnalysisReader is the read side of the analysis store.
type AnalysisReader interface {
	List(ctx context.Context) (filestore.Listing, error)
	Get(ctx context.Context, name string) (filestore.StoredRecord, error)
	Files(ctx context.Context) (filestore.FileListing, error)
}

// AnalysisHandler serves the read-only dashboard API over retained records.
type AnalysisHandler struct {
	store  AnalysisReader
	logger *slog.Logger
	port   string
}

// NewAnalysisHandler creates a new AnalysisHandler. port is reported by the
// health endpoint.
func NewAnalysisHandler(store AnalysisReader, logger *slog.Logger, port string) *AnalysisHandler {
	return &AnalysisHandler{
		store:  store,
		logger: logger.With("component", "analysis_handler"),
		port:   port,
	}
}

type listResponse struct {
	Success bool                     `json:"success"`
	Count   int                      `json:"count"`
	Data    []filestore.StoredRecord `json:"data"`
}

type getResponse struct {
	Success bool                   `json:"success"`
	Data    filestore.StoredRecord `json:"data"`
}

type filesResponse struct {
	Files      []filestore.FileInfo `json:"files"`
	TotalFiles int                  `json:"totalFiles"`
	JSONFiles  int                  `json:"jsonFiles"`
	Error      string               `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Port      string `json:"port"`
}

// List handles GET /api/analyzed-data.
func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	listing, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list analyzed data", "error", err)
		respondWithError(h.logger, w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	records := listing.Records
	if records == nil {
		records = []filestore.StoredRecord{}
	}
	respondWithJSON(h.logger, w, http.StatusOK, listResponse{Success: true, Count: len(records), Data: records})
}

// Get handles GET /api/analyzed-data/{filename}.
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	record, err := h.store.Get(r.Context(), name)
	switch {
	case errors.Is(err, filestore.ErrInvalidName):
		respondWithError(h.logger, w, http.StatusBadRequest, "Invalid filename", "")
	case errors.Is(err, filestore.ErrNotFound):
		respondWithError(h.logger, w, http.StatusNotFound, "File not found", "")
	case err != nil:
		h.logger.Error("failed to read analyzed file", "filename", name, "error", err)
		respondWithError(h.logger, w, http.StatusInternalServerError, "Internal server error", err.Error())
	default:
		respondWithJSON(h.logger, w, http.StatusOK, getResponse{Success: true, Data: record})
	}
}

// Files handles GET /api/files.
func (h *AnalysisHandler) Files(w http.ResponseWriter, r *http.Request) {
	listing, err := h.store.Files(r.Context())
	if err != nil {
		h.logger.Error("failed to list files", "error", err)
		respondWithError(h.logger, w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}
	resp := filesResponse{Files: listing.Files, TotalFiles: listing.TotalFiles, JSONFiles: listing.JSONFiles}
	if resp.Files == nil {
		resp.Files = []filestore.FileInfo{}
	}
	if listing.Missing {
		resp.Error = "analyzed_data directory not found"
	}
	respondWithJSON(h.logger, w, http.StatusOK, resp)
}

// Health handles GET /api/health.
func (h *AnalysisHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(h.logger, w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Port:      h.port,
	})
}
