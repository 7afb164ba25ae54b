package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	LastChecked string `json:"lastChecked"`
}

// RouteMetrics is one entry of GET /v1/metrics/routes.
type RouteMetrics struct {
	Route     string  `json:"route"`
	Total     int64   `json:"total"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"errorRate"`
	P95Ms     float64 `json:"p95"`
}

// ============================================================
// Response envelopes
// ============================================================

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Message       string `json:"message"`
	Details       any    `json:"details,omitempty"`
	Status        int    `json:"status,omitempty"`
	CorrelationID string `json:"correlationId"`
}
