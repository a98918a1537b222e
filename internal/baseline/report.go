package baseline

import (
	"fmt"
	"time"
)

// Summary aggregates the per-requirement outcomes of a session.
type Summary struct {
	Total       int    `json:"total_requirements"`
	Validated   int    `json:"validated"`
	Failed      int    `json:"failed"`
	SuccessRate string `json:"success_rate"`
}

// Report is the final artifact of a session, built once after all
// requirement loops have reached a terminal state.
type Report struct {
	SessionID       string         `json:"session_id"`
	ServiceName     string         `json:"service_name"`
	Timestamp       time.Time      `json:"timestamp"`
	Summary         Summary        `json:"summary"`
	Recommendations []string       `json:"recommendations"`
	NextSteps       []string       `json:"next_steps"`
	Requirements    []*Requirement `json:"requirements"`
}

// RunResult is the top-level output of a session run.
type RunResult struct {
	SessionID         string         `json:"session_id"`
	TotalRequirements int            `json:"total_requirements"`
	ValidatedCount    int            `json:"validated_requirements"`
	FailedCount       int            `json:"failed_requirements"`
	Report            *Report        `json:"report"`
	Requirements      []*Requirement `json:"requirements_details"`
}

// SuccessRate formats validated/total as a percentage with one decimal
// place. An empty set renders as the literal "0%".
func SuccessRate(validated, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", float64(validated)/float64(total)*100)
}

// BuildReport aggregates terminal requirements into the session report.
// Requirements keep their original generation order.
func BuildReport(session Session, requirements []*Requirement) *Report {
	var validated, failed int
	for _, r := range requirements {
		switch r.Status {
		case StatusValidated:
			validated++
		case StatusFailed:
			failed++
		}
	}

	report := &Report{
		SessionID:   session.ID,
		ServiceName: session.ServiceName,
		Timestamp:   time.Now().UTC(),
		Summary: Summary{
			Total:       len(requirements),
			Validated:   validated,
			Failed:      failed,
			SuccessRate: SuccessRate(validated, len(requirements)),
		},
		Requirements: requirements,
	}

	if failed > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Review and manually validate %d failed requirements", failed))
	}
	if validated > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Deploy %d validated configurations to production", validated))
	}

	report.NextSteps = append(report.NextSteps,
		"Review validation logs for detailed test results",
		"Consider implementing validated configurations in your infrastructure")

	return report
}

// NewRunResult wraps a report into the top-level invocation output.
func NewRunResult(session Session, report *Report) *RunResult {
	return &RunResult{
		SessionID:         session.ID,
		TotalRequirements: report.Summary.Total,
		ValidatedCount:    report.Summary.Validated,
		FailedCount:       report.Summary.Failed,
		Report:            report,
		Requirements:      report.Requirements,
	}
}
