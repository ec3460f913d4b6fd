// Package chi is the HTTP transport: the REST API for sessions,
// generation, artifact downloads and rule-based field generation.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tabsynth/tabsynth/internal/domain"
	"github.com/tabsynth/tabsynth/internal/domain/dataset"
	logpkg "github.com/tabsynth/tabsynth/internal/logger"
	datasetrepo "github.com/tabsynth/tabsynth/internal/repository/dataset"
	fieldgenuc "github.com/tabsynth/tabsynth/internal/usecase/fieldgen"
	healthuc "github.com/tabsynth/tabsynth/internal/usecase/health"
	sessionuc "github.com/tabsynth/tabsynth/internal/usecase/session"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the use case services over REST.
type Server struct {
	sessions      *sessionuc.Service
	fieldgen      *fieldgenuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	maxUpload     int64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. maxUpload caps the source
// dataset upload size in bytes.
func NewServer(
	sessions *sessionuc.Service,
	fieldgen *fieldgenuc.Service,
	health *healthuc.Service,
	maxUpload int64,
	logger *zap.Logger,
) *Server {
	s := &Server{
		sessions:  sessions,
		fieldgen:  fieldgen,
		health:    health,
		logger:    logger,
		maxUpload: maxUpload,
	}
	s.errorHandlers = []errorHandler{
		unsatisfiableHandler,
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, codeSessionNotFound),
		sentinelHandler(domain.ErrDatasetNotFound, http.StatusNotFound, codeDatasetNotFound),
		sentinelHandler(domain.ErrSchemaMismatch, http.StatusBadRequest, codeSchemaMismatch),
		sentinelHandler(domain.ErrInvalidConstraint, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnknownBackend, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrModelTraining, http.StatusBadRequest, codeModelError),
		sentinelHandler(domain.ErrModelNotTrained, http.StatusConflict, codeModelError),
		sentinelHandler(domain.ErrModelSampling, http.StatusBadGateway, codeModelError),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", s.createSession)
		r.Get("/sessions", s.listSessions)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/generate", s.generate)
			r.Get("/datasets/{name}", s.downloadDataset)
		})
		r.Post("/fieldgen", s.generateFields)
	})
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", s.metrics)
}

// createSession handles POST /api/v1/sessions. The source dataset is a
// multipart upload ("file", csv or xlsx); "backend" and a comma
// separated "categorical" hint list come as form fields.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, `multipart part "file" is required`)
		return
	}
	defer file.Close()

	source, err := ingestUpload(file, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	var categorical []string
	if raw := r.FormValue("categorical"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categorical = append(categorical, c)
			}
		}
	}

	sess, err := s.sessions.Create(r.Context(), r.FormValue("backend"), source, categorical)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sessionToDTO(sess))
}

// listSessions handles GET /api/v1/sessions.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SessionResponse, len(sessions))
	for i, sess := range sessions {
		items[i] = sessionToDTO(sess)
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Items: items, Total: len(items)})
}

// getSession handles GET /api/v1/sessions/{id}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToDTO(sess))
}

// deleteSession handles DELETE /api/v1/sessions/{id}.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// generate handles POST /api/v1/sessions/{id}/generate.
func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Rows <= 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "rows must be positive")
		return
	}

	spec, err := specFromDTO(req.Constraints)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	gen, err := s.sessions.Generate(r.Context(), chi.URLParam(r, "id"), spec, req.Rows, req.Combine)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Session: sessionToDTO(gen.Session),
		Rows:    gen.Synthetic.Len(),
		Rounds:  gen.Rounds,
		Sampled: gen.Sampled,
	})
}

// downloadDataset handles GET /api/v1/sessions/{id}/datasets/{name}.
// The format query picks csv (default) or parquet.
func (s *Server) downloadDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "parquet" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "format must be csv or parquet")
		return
	}

	ds, err := s.sessions.Dataset(r.Context(), id, name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s-%s.%s", id, name, format)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if format == "parquet" {
		w.Header().Set("Content-Type", "application/vnd.apache.parquet")
		if err := datasetrepo.WriteParquet(w, ds); err != nil {
			s.logger.Error("parquet export failed", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	if err := datasetrepo.WriteCSV(w, ds); err != nil {
		s.logger.Error("csv export failed", zap.Error(err))
	}
}

// generateFields handles POST /api/v1/fieldgen.
func (s *Server) generateFields(w http.ResponseWriter, r *http.Request) {
	var req FieldGenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	rules, err := rulesFromDTO(req.Rules)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	fields := make([]fieldgenuc.Field, len(req.Fields))
	for i, f := range req.Fields {
		fields[i] = fieldgenuc.Field(f)
	}

	ds, err := s.fieldgen.Generate(r.Context(), fields, rules, req.Records)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="records.csv"`)
		if err := datasetrepo.WriteCSV(w, ds); err != nil {
			s.logger.Error("csv export failed", zap.Error(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, FieldGenResponse{
		Records: rowsToJSON(ds),
		Count:   ds.Len(),
	})
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// metrics handles GET /metrics.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// ingestUpload parses the source file by its extension.
func ingestUpload(file multipart.File, filename string) (dataset.Dataset, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return datasetrepo.ReadCSV(file)
	case ".xlsx":
		return datasetrepo.ReadXLSX(file)
	}
	return dataset.Dataset{}, fmt.Errorf("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client
// without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrSessionNotFound,
		domain.ErrDatasetNotFound,
		domain.ErrSchemaMismatch,
		domain.ErrInvalidConstraint,
		domain.ErrUnknownBackend,
		domain.ErrConstraintUnsatisfiable,
		domain.ErrModelTraining,
		domain.ErrModelNotTrained,
		domain.ErrModelSampling,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// unsatisfiableHandler reports an exhausted sampling budget with the
// partial acceptance counts the client needs to relax and retry.
func unsatisfiableHandler(w http.ResponseWriter, err error, msg string) bool {
	if !errors.Is(err, domain.ErrConstraintUnsatisfiable) {
		return false
	}
	var ue *domain.UnsatisfiableError
	if errors.As(err, &ue) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":     codeUnsatisfiable,
			"message":  msg,
			"pending":  ue.Pending,
			"accepted": ue.Accepted,
			"rounds":   ue.Rounds,
		})
		return true
	}
	writeError(w, http.StatusUnprocessableEntity, codeUnsatisfiable, msg)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logpkg.FromContext(r.Context()).Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
