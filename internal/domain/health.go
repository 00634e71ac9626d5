package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// IntakeMetrics is returned by GET /v1/metrics/intake.
type IntakeMetrics struct {
	Uploads          int64              `json:"uploads"`
	UploadFailures   int64              `json:"uploadFailures"`
	Classifications  map[string]int64   `json:"classifications"`
	Analyses         map[string]int64   `json:"analyses"`
	AnalysisFailures map[string]int64   `json:"analysisFailures"`
	AvgLatencyMs     map[string]float64 `json:"avgLatencyMs"`
	DisclaimersShown int64              `json:"disclaimersShown"`
	Waitlisted       int64              `json:"waitlisted"`
	StaleResponses   int64              `json:"staleResponses"`
	ActiveWorkspaces float64            `json:"activeWorkspaces"`
	CacheHitRate     float64            `json:"cacheHitRate"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
