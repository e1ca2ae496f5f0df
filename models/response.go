package models

// DailyHoldingsResponse is the body for GET /api/v1/holdings/daily.
//
// The endpoint never fails at batch level: individual fund failures surface
// as placeholder records with DataFound=false, never as an error response.
type DailyHoldingsResponse struct {
	Success bool `json:"success"`

	// Holdings carries exactly one record per roster fund, in roster order.
	Holdings []HoldingsRecord `json:"holdings"`

	// Found is the number of funds with usable data this run.
	Found int `json:"found"`

	// Total is the roster size.
	Total int `json:"total"`

	// Cached reports whether the snapshot came from the run cache.
	Cached bool `json:"cached"`

	// TimingMs is the wall-clock duration of the orchestration run.
	TimingMs int64 `json:"timing_ms"`
}

// ErrorResponse is the envelope for boundary rejections (bad input, auth,
// rate limiting). Extraction failures never use it; they surface inside
// DailyHoldingsResponse as placeholder records.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the body for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	RenderMode    string `json:"render_mode"`
	RosterSize    int    `json:"roster_size"`
}
