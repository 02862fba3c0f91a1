package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"photobooth/internal/booth"
	"photobooth/internal/capture"
	"photobooth/internal/pipeline"
	"photobooth/internal/session"
	"photobooth/internal/storage"
)

// maxUploadBytes bounds a multipart upload of four photos.
const maxUploadBytes = 64 << 20

// Server exposes the kiosk booth, the job pipeline and stored strips over HTTP.
type Server struct {
	addr     string
	booth    *booth.Booth
	hub      http.Handler
	store    *storage.Store
	pipeline *pipeline.Pipeline
	log      *slog.Logger
	server   *http.Server
}

// NewServer wires the HTTP surface. hub serves /ws and may be nil.
func NewServer(addr string, b *booth.Booth, hub http.Handler, store *storage.Store, pipe *pipeline.Pipeline, log *slog.Logger) *Server {
	return &Server{
		addr:     addr,
		booth:    b,
		hub:      hub,
		store:    store,
		pipeline: pipe,
		log:      log,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.setupRoutes(r)
	s.setupBoothRoutes(r)
	return r
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info("server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// setupRoutes configures health, job and strip routes
func (s *Server) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.hub != nil {
		r.Handle("/ws", s.hub).Methods("GET")
	}
	r.HandleFunc("/api/jobs", s.handleJobs).Methods("GET")
	r.HandleFunc("/api/strip", s.handleSubmitStrip).Methods("POST")
	r.HandleFunc("/api/strips", s.handleStrips).Methods("GET")
	r.HandleFunc("/api/strips/{id}/download", s.handleStripDownload).Methods("GET")
	r.HandleFunc("/stream", s.handleJobStream).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.RecentJobs(limitParam(r, 100))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleStrips(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.RecentStrips(r.Context(), limitParam(r, 50))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleStripDownload(w http.ResponseWriter, r *http.Request) {
	art, err := s.store.Strip(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJPEG(w, art.Filename, art.Data)
}

// handleSubmitStrip queues a headless strip job from four uploaded photos.
func (s *Server) handleSubmitStrip(w http.ResponseWriter, r *http.Request) {
	uploads, err := readUploads(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	job := pipeline.Job{
		ID:   pipeline.NewID("strip"),
		Type: pipeline.JobStrip,
		Mode: session.Mode(r.FormValue("mode")),
		Options: map[string]any{
			"background": r.FormValue("background"),
			"frame":      r.FormValue("frame"),
			"note":       r.FormValue("note"),
			"date":       r.FormValue("date") == "true",
		},
	}
	if z, err := strconv.ParseFloat(r.FormValue("zoom"), 64); err == nil {
		job.Options["zoom"] = z
	}
	for _, u := range uploads {
		job.Inputs = append(job.Inputs, pipeline.Input{Name: u.Name, Data: u.Data})
	}
	if err := s.pipeline.Submit(job); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": job.ID})
}

// jobEvent is the wire form of a pipeline result.
type jobEvent struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Strip  string         `json:"strip,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

func newJobEvent(res pipeline.Result) jobEvent {
	ev := jobEvent{ID: res.Job.ID, Type: string(res.Job.Type), Status: "completed", Meta: res.Meta}
	if res.Error != nil {
		ev.Status = "failed"
		ev.Error = res.Error.Error()
	}
	if res.Artifact != nil {
		ev.Strip = res.Artifact.ID
	}
	return ev
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	resCh, unsubscribe := s.pipeline.Subscribe()
	defer unsubscribe()
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case res, ok := <-resCh:
			if !ok {
				return
			}
			payload, _ := json.Marshal(newJobEvent(res))
			_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
			flusher.Flush()
		}
	}
}

func limitParam(r *http.Request, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJPEG(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// errorResponse carries the technical error and the kiosk alert text.
type errorResponse struct {
	Error string `json:"error"`
	Alert string `json:"alert"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Alert: booth.AlertMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, booth.ErrWrongPhase), errors.Is(err, capture.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, booth.ErrNoStrip), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrInvalidUploadCount),
		errors.Is(err, session.ErrUnknownMode),
		errors.Is(err, session.ErrNoMode),
		errors.Is(err, session.ErrIncomplete),
		errors.Is(err, errBadRequest),
		errors.Is(err, io.ErrUnexpectedEOF):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrDecodeFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrCameraUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
