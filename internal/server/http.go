package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-tracker/constants"
	"github.com/joseph-ayodele/invoice-tracker/internal/async"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/events"
	"github.com/joseph-ayodele/invoice-tracker/internal/ingest"
)

const maxUploadBytes = ingest.MaxDocumentBytes + 1<<20

// Handler serves the event relay, document uploads and a health check.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", events.NewRelay(a.Bus, 64, a.Logger))
	mux.HandleFunc("POST /documents", a.handleUpload)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	return withRequestID(mux, a.Logger)
}

func withRequestID(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		logger.Debug("http.request", "method", r.Method, "path", r.URL.Path, "req_id", id)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), id)))
	})
}

type uploadResponse struct {
	JobID       string `json:"job_id"`
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
}

// handleUpload accepts a multipart "file" part and starts an extraction job.
// Progress is streamed on /ws?job_id=<id>.
func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer func() { _ = file.Close() }()

	ext := r.FormValue("type")
	if ext == "" {
		ext = filepath.Ext(hdr.Filename)
	}
	kind, ok := constants.KindForExt(ext)
	if !ok {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported document type "+ext)
		return
	}

	doc, err := ingest.ReadDocument(hdr.Filename, ext, kind, file)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, common.ErrInvalidInput) {
			code = http.StatusRequestEntityTooLarge
		}
		writeError(w, code, err.Error())
		return
	}

	task, err := a.Orchestrator.Submit(r.Context(), doc)
	if err != nil {
		if errors.Is(err, async.ErrShuttingDown) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, uploadResponse{JobID: task.ID, Filename: doc.Filename, ContentHash: doc.ContentHash})
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"capabilities": a.Capabilities,
		"jobs":         a.Orchestrator.InFlight(),
		"subscribers":  a.Bus.Subscribers(),
	}
	if err := a.DB.HealthCheck(r.Context(), 2*time.Second); err != nil {
		body["database"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["database"] = "ok"
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
