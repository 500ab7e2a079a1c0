package dto

// RunReport summarizes one poll pass.
type RunReport struct {
	Checked     int `json:"checked"`
	Skipped     int `json:"skipped"`
	Credited    int `json:"credited"`
	Points      int `json:"points"`
	Errors      int `json:"errors"`
	RateLimited int `json:"rateLimited"`
	// Aborted is set when a season rollover cut the pass short.
	Aborted bool `json:"aborted"`
}
