// Package server provides the HTTP server for the talking-head API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

// CreateRunRequest is the HTTP request body for starting a new run.
// Exactly one of ScriptText and AudioBase64 must be provided: the run
// either synthesizes speech from the script or lip-syncs to the audio.
type CreateRunRequest struct {
	// ImageBase64 is the base64-encoded portrait photo.
	ImageBase64 string `json:"image_base64" validate:"required,base64"`
	// ImageName is the original filename of the photo, used to pick a content type.
	ImageName string `json:"image_name"`
	// ScriptText is the text to synthesize into speech.
	ScriptText string `json:"script_text" validate:"required_without=AudioBase64,excluded_with=AudioBase64"`
	// AudioBase64 is base64-encoded pre-recorded speech audio.
	AudioBase64 string `json:"audio_base64,omitempty" validate:"omitempty,base64"`
	// AudioName is the original filename of the audio, used to pick a content type.
	AudioName string `json:"audio_name"`
	// PushToS3 indicates whether to republish the rendered video to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateRunResponse is the HTTP response after accepting a run.
type CreateRunResponse struct {
	// ID is the unique identifier for the accepted run.
	ID string `json:"id"`
	// Status is the initial run status.
	Status string `json:"status"`
}

// RunResponse is the HTTP response for run status lookups.
type RunResponse struct {
	// ID is the unique identifier for the run.
	ID string `json:"id"`
	// Status is the current run status.
	Status string `json:"status"`
	// Stage describes the pipeline stage the run is in.
	Stage string `json:"stage,omitempty"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// ResultURL is the rendered video's location once completed.
	ResultURL string `json:"result_url,omitempty"`
	// Error contains the failure message if the run failed.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
