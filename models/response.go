package models

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	// Status is "healthy" while a run is in progress or finished cleanly,
	// "degraded" after an aborted run.
	Status string `json:"status"`

	// Uptime is the time since the process started.
	Uptime string `json:"uptime"`

	// RunStatus mirrors the current run's status.
	RunStatus string `json:"run_status"`

	Version string `json:"version"`
}

// ErrorDetail describes a failed status-server request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an ErrorDetail.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
