package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/mvidal/talkinghead-api/internal/pipeline"
	"github.com/mvidal/talkinghead-api/internal/run"
)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *run.Service
	validator          *validator.Validate
	logger             *slog.Logger
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background execution.
// When disabled, CreateRun only accepts the run and returns immediately
// without starting the pipeline. Used by tests.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *run.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateRun handles POST /runs requests.
func (h *Handlers) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request, including the script-or-audio exclusivity
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input, err := buildPipelineInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_PAYLOAD")
		return
	}

	// Accept the run first (synchronously)
	accepted, err := h.service.Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create run",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create run", "RUN_CREATION_FAILED")
		return
	}

	// Execute the pipeline in background with a detached context.
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, runID string, in pipeline.Input, publish bool) {
			if execErr := h.service.Execute(ctx, runID, in, publish); execErr != nil {
				h.logger.Error("background execution failed",
					slog.String("run_id", runID),
					slog.String("error", execErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), accepted.ID, input, req.PushToS3)
	}

	h.logger.Info("run accepted",
		slog.String("run_id", accepted.ID),
		slog.Bool("from_script", input.ScriptText != ""),
		slog.Bool("push_to_s3", req.PushToS3),
	)

	writeJSON(w, http.StatusAccepted, CreateRunResponse{
		ID:     accepted.ID,
		Status: string(accepted.Status),
	})
}

// GetRun handles GET /runs/{id} requests.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run ID is required", "MISSING_RUN_ID")
		return
	}

	found, err := h.service.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found", "RUN_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get run",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get run", "RUN_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{
		ID:        found.ID,
		Status:    string(found.Status),
		Stage:     found.Stage,
		Progress:  found.Progress,
		ResultURL: found.ResultURL,
		Error:     found.Error,
	})
}

// buildPipelineInput decodes the request payload into pipeline input.
func buildPipelineInput(req CreateRunRequest) (pipeline.Input, error) {
	imageData, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return pipeline.Input{}, errors.New("image_base64 is not valid base64")
	}

	in := pipeline.Input{
		ImageData:  imageData,
		ImageName:  req.ImageName,
		ScriptText: req.ScriptText,
		AudioName:  req.AudioName,
	}

	if req.AudioBase64 != "" {
		audioData, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			return pipeline.Input{}, errors.New("audio_base64 is not valid base64")
		}
		in.AudioData = audioData
	}

	return in, nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
