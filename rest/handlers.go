// Package rest exposes the engine's operations as plain net/http handlers.
//
// The handlers are deliberately framework-free so hosts can mount them on
// any router. User identity arrives in the X-User-ID header, set by the
// authenticating gateway in front of this service.
package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	entitle "github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/id"
	"github.com/jobdeck/entitle/job"
	"github.com/jobdeck/entitle/ratelimit"
)

// userIDHeader carries the authenticated user, set by the gateway.
const userIDHeader = "X-User-ID"

// Handlers is the REST surface over the engine.
type Handlers struct {
	engine   *entitle.Engine
	limitCfg ratelimit.Config
	logger   *slog.Logger
}

// New creates the REST handler set. The rate limit config is only used to
// populate the X-RateLimit-Limit header; enforcement lives in the engine.
func New(engine *entitle.Engine, limitCfg ratelimit.Config, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		engine:   engine,
		limitCfg: limitCfg,
		logger:   logger,
	}
}

// Mux returns a ServeMux with all routes registered.
func (h *Handlers) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", h.CreateJob)
	mux.HandleFunc("GET /jobs/export", h.Export)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /me/entitlement", h.Entitlement)
	return mux
}

type createJobRequest struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type createJobResponse struct {
	Job     *job.Job `json:"job"`
	Message string   `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateJob creates a job posting. A duplicate submission absorbed by the
// idempotency guard returns 200 with the original posting instead of 201.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user identity"})
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	res, err := h.engine.CreateJob(r.Context(), &job.Job{
		OwnerID:     userID,
		Title:       req.Title,
		Company:     req.Company,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		var verr entitle.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
			return
		}
		h.logger.Error("job creation failed", "owner_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "job creation failed"})
		return
	}

	if res.AlreadyExists {
		writeJSON(w, http.StatusOK, createJobResponse{
			Job:     res.Job,
			Message: "identical posting already submitted moments ago",
		})
		return
	}
	writeJSON(w, http.StatusCreated, createJobResponse{Job: res.Job})
}

// GetJob fetches a single posting by ID.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := id.ParseJobID(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid job id"})
		return
	}

	j, err := h.engine.GetJob(r.Context(), jobID)
	if err != nil {
		if entitle.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, j)
}

type exportResponse struct {
	// ExportID is the receipt for this export, for support and log
	// correlation. Exports are not persisted, so the ID is minted here.
	ExportID id.ExportID `json:"export_id"`
	Jobs     []*job.Job  `json:"jobs"`
}

// Export returns all the caller's postings, subject to the per-user rate
// limit. Denials carry retry metadata in standard headers.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user identity"})
		return
	}

	jobs, res, err := h.engine.Export(r.Context(), userID)
	if err != nil {
		if errors.Is(err, entitle.ErrRateLimited) {
			now := time.Now().UTC()
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter(now).Seconds())+1))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.limitCfg.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", res.ResetAt.Format(time.RFC3339))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		h.logger.Error("export failed", "owner_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "export failed"})
		return
	}

	exportID := id.NewExportID()
	h.logger.Info("export served",
		"export_id", exportID.String(),
		"owner_id", userID,
		"jobs", len(jobs),
	)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(h.limitCfg.MaxRequests))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	writeJSON(w, http.StatusOK, exportResponse{ExportID: exportID, Jobs: jobs})
}

type entitlementResponse struct {
	Entitled bool `json:"entitled"`
}

// Entitlement reports whether the caller's claims mark them as entitled.
func (h *Handlers) Entitlement(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing user identity"})
		return
	}

	entitled, err := h.engine.IsEntitled(r.Context(), userID)
	if err != nil {
		h.logger.Error("entitlement check failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "entitlement check failed"})
		return
	}
	writeJSON(w, http.StatusOK, entitlementResponse{Entitled: entitled})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // best-effort
}
