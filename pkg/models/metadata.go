package models

import "time"

// RunMetadata is the per-run summary surfaced to the caller. It is the
// contract the notification collaborator depends on: counts and
// duration on success, failed step and error description on failure.
type RunMetadata struct {
	RunID       string        `json:"run_id"`
	Pipeline    string        `json:"pipeline"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Duration    time.Duration `json:"duration"`
	Extracted   int           `json:"extracted"`
	Transformed int           `json:"transformed"`
	Dropped     int           `json:"dropped"`
	Loaded      int           `json:"loaded"`
	Duplicates  int           `json:"duplicates"`
	TotalRows   int64         `json:"total_rows"`
	Succeeded   bool          `json:"succeeded"`
	FailedStep  string        `json:"failed_step,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// QualityRate reports the fraction of the transform stage's input that
// survived the quality filter: transformed / (transformed + dropped).
// An empty transform input reports a rate of 0.
func (m *RunMetadata) QualityRate() float64 {
	if m.Transformed+m.Dropped == 0 {
		return 0
	}
	return float64(m.Transformed) / float64(m.Transformed+m.Dropped)
}

// ToMap renders the metadata as the details mapping consumed by the
// notification collaborator.
func (m *RunMetadata) ToMap() map[string]interface{} {
	details := map[string]interface{}{
		"run_id":       m.RunID,
		"pipeline":     m.Pipeline,
		"started_at":   m.StartedAt,
		"finished_at":  m.FinishedAt,
		"duration":     m.Duration.String(),
		"extracted":    m.Extracted,
		"transformed":  m.Transformed,
		"dropped":      m.Dropped,
		"loaded":       m.Loaded,
		"duplicates":   m.Duplicates,
		"total_rows":   m.TotalRows,
		"quality_rate": m.QualityRate(),
		"succeeded":    m.Succeeded,
	}
	if !m.Succeeded {
		details["failed_step"] = m.FailedStep
		details["error"] = m.Error
	}
	return details
}
