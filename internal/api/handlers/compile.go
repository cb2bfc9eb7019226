// Package handlers provides HTTP handlers for the compiler API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/pdf-compiler/internal/domain"
	"github.com/spherical/pdf-compiler/internal/observability"
	"github.com/spherical/pdf-compiler/internal/pdf"
)

// CompileHandler compiles documents posted to the API.
type CompileHandler struct {
	logger    *observability.Logger
	compiler  domain.Compiler
	maxSource int64
}

// NewCompileHandler creates a new compile handler.
func NewCompileHandler(logger *observability.Logger, compiler domain.Compiler, maxSourceBytes int64) *CompileHandler {
	if maxSourceBytes <= 0 {
		maxSourceBytes = 8 << 20
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &CompileHandler{
		logger:    logger,
		compiler:  compiler,
		maxSource: maxSourceBytes,
	}
}

// CompileRequestDTO is the JSON form of a compile request.
type CompileRequestDTO struct {
	Source string `json:"source"`
}

// CompileErrorDTO is returned when no document could be produced.
type CompileErrorDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Log     string `json:"log,omitempty"`
	Hint    string `json:"hint"`
	TraceID string `json:"traceId,omitempty"`
}

// Compile handles POST /compile. The body is either the raw document or a
// JSON object with a source field.
func (h *CompileHandler) Compile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" && observability.TraceIDFromContext(ctx) == "" {
		ctx = observability.ContextWithTraceID(ctx, reqID)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxSource))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "source too large", "limit is "+strconv.FormatInt(h.maxSource, 10)+" bytes")
			return
		}
		h.writeError(w, http.StatusBadRequest, "could not read request body", err.Error())
		return
	}

	source := string(body)
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		var reqDTO CompileRequestDTO
		if err := json.Unmarshal(body, &reqDTO); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		source = reqDTO.Source
	}

	if strings.TrimSpace(source) == "" {
		h.writeError(w, http.StatusBadRequest, "source is required", "")
		return
	}

	artifact, err := h.compiler.Compile(ctx, source)
	if err != nil {
		h.writeCompileError(w, observability.TraceIDFromContext(ctx), err)
		return
	}

	w.Header().Set("Content-Type", artifact.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(artifact.Size()))
	if info, err := pdf.Inspect(artifact.Data); err == nil {
		w.Header().Set("X-Page-Count", strconv.Itoa(info.Pages))
	} else {
		h.logger.WithContext(ctx).Debug().Err(err).Msg("Artifact could not be inspected")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

// statusFor maps an error kind onto the HTTP status returned to API callers.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindCompilationFailed:
		return http.StatusUnprocessableEntity
	case domain.KindTransportUnreachable, domain.KindRelayFailure, domain.KindUpstreamRejected:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *CompileHandler) writeCompileError(w http.ResponseWriter, traceID string, err error) {
	ce := domain.AsCompilationError(err)

	w.Header().Set("Content-Type", "application/json")
	if ce.Retryable() {
		w.Header().Set("Retry-After", "30")
	}
	w.WriteHeader(statusFor(ce.Kind))
	_ = json.NewEncoder(w).Encode(CompileErrorDTO{
		Kind:    string(ce.Kind),
		Message: ce.Message,
		Log:     ce.Log,
		Hint:    ce.Hint(),
		TraceID: traceID,
	})
}

func (h *CompileHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	_ = json.NewEncoder(w).Encode(resp)
}
