// internal/orchestrator/stats.go
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"admission-orchestrator/internal/models"
	"admission-orchestrator/internal/notify"
)

// Stats is an aggregate snapshot for reporting. Counts come from a single
// pass over the store so they are consistent with each other.
type Stats struct {
	TotalApplications int               `json:"totalApplications"`
	ByStatus          map[string]int    `json:"byStatus"`
	Shortlisted       int               `json:"shortlisted"`
	Confirmed         int               `json:"confirmed"`
	LoansApproved     int               `json:"loansApproved"`
	LoansApprovedSum  float64           `json:"loansApprovedSum"`
	BudgetCapacity    float64           `json:"budgetCapacity"`
	BudgetRemaining   float64           `json:"budgetRemaining"`
	ApprovedLoans     []ApprovedLoanRow `json:"approvedLoans,omitempty"`
}

// ApprovedLoanRow is one approved loan line in the stats report.
type ApprovedLoanRow struct {
	AppID  int64   `json:"appId"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Stats computes the aggregate snapshot.
func (o *Orchestrator) Stats() Stats {
	apps := o.Snapshot()

	stats := Stats{
		TotalApplications: len(apps),
		ByStatus:          make(map[string]int),
		BudgetCapacity:    o.ledger.Capacity(),
		BudgetRemaining:   o.ledger.Remaining(),
	}
	for _, app := range apps {
		stats.ByStatus[string(app.Status)]++
		switch app.Status {
		case models.StatusShortlisted:
			stats.Shortlisted++
		case models.StatusAdmissionConfirmed:
			stats.Confirmed++
		}
		if app.Loan.Status == models.LoanApproved {
			stats.LoansApproved++
			stats.LoansApprovedSum += app.Loan.ApprovedAmount
			stats.ApprovedLoans = append(stats.ApprovedLoans, ApprovedLoanRow{
				AppID:  app.ID,
				Name:   app.Name,
				Amount: app.Loan.ApprovedAmount,
			})
		}
	}
	return stats
}

// AnswerQuery answers a free-form administrative question. Known question
// shapes get exact numbers straight from the store; everything else goes to
// the text generator with a stats digest as context, and a plain digest is
// the final fallback.
func (o *Orchestrator) AnswerQuery(ctx context.Context, question string) string {
	stats := o.Stats()
	q := strings.ToLower(question)

	switch {
	case strings.Contains(q, "how many") && strings.Contains(q, "application"):
		return fmt.Sprintf("There are %d applications in total.", stats.TotalApplications)

	case strings.Contains(q, "shortlist"):
		return fmt.Sprintf("%d applications are currently shortlisted.", stats.Shortlisted)

	case strings.Contains(q, "budget"):
		return fmt.Sprintf("Loan budget: $%.2f remaining of $%.2f capacity.",
			stats.BudgetRemaining, stats.BudgetCapacity)

	case strings.Contains(q, "approved loan") || (strings.Contains(q, "loan") && strings.Contains(q, "approved")):
		if stats.LoansApproved == 0 {
			return "No loans have been approved."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%d loans approved totaling $%.2f:\n", stats.LoansApproved, stats.LoansApprovedSum)
		for _, row := range stats.ApprovedLoans {
			fmt.Fprintf(&b, "- #%d %s: $%.2f\n", row.AppID, row.Name, row.Amount)
		}
		return strings.TrimRight(b.String(), "\n")

	case strings.Contains(q, "overview") || strings.Contains(q, "summary") || strings.Contains(q, "status"):
		return statsDigest(stats)
	}

	if o.generator != nil {
		body, err := o.generator.Generate(ctx, notify.GenerateRequest{
			Purpose:          "answer an administrative question about the admissions pipeline",
			RecipientContext: "admissions director",
			Status:           "reporting",
			Details:          question,
			Snippets:         []string{statsDigest(stats)},
		})
		if err == nil && body != "" {
			return body
		}
		o.logger.Warn("query generator unavailable", map[string]interface{}{"error": err})
	}

	return statsDigest(stats)
}

func statsDigest(stats Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Applications: %d total.", stats.TotalApplications)
	for _, status := range []models.Status{
		models.StatusSubmitted,
		models.StatusDocumentsIncomplete,
		models.StatusDocumentsComplete,
		models.StatusShortlisted,
		models.StatusRejectedEligibility,
		models.StatusAdmissionConfirmed,
	} {
		if n := stats.ByStatus[string(status)]; n > 0 {
			fmt.Fprintf(&b, " %s: %d.", status, n)
		}
	}
	fmt.Fprintf(&b, " Loans approved: %d ($%.2f). Budget remaining: $%.2f.",
		stats.LoansApproved, stats.LoansApprovedSum, stats.BudgetRemaining)
	return b.String()
}
