// internal/workflow/feeslip.go
package workflow

import (
	"fmt"
	"strings"
	"time"

	"admission-orchestrator/internal/models"
)

// paymentWindow is how long the applicant has to settle the fee slip.
const paymentWindow = 14 * 24 * time.Hour

// FeeSlipBody renders the deterministic fee slip artifact attached to the
// admission letter. Never generated by a language model: amounts, identifiers
// and deadlines must be exact.
func FeeSlipBody(app *models.Application, feeBreakdown string, courseFee float64) string {
	var b strings.Builder

	amountDue := courseFee
	b.WriteString("--- Fee Slip ---\n")
	fmt.Fprintf(&b, "Application ID: %d\n", app.ID)
	fmt.Fprintf(&b, "Student Name: %s\n", app.Name)
	fmt.Fprintf(&b, "Course: %s\n", app.Course)
	b.WriteString("\nFee Breakdown:\n")
	b.WriteString(strings.TrimSpace(feeBreakdown))
	b.WriteString("\n")

	if app.Loan.Status == models.LoanApproved && app.Loan.ApprovedAmount > 0 {
		fmt.Fprintf(&b, "\nApproved Loan Deduction: -$%.2f\n", app.Loan.ApprovedAmount)
		amountDue -= app.Loan.ApprovedAmount
		if amountDue < 0 {
			amountDue = 0
		}
	}

	fmt.Fprintf(&b, "\nAmount Due: $%.2f\n", amountDue)
	deadline := time.Now().UTC().Add(paymentWindow)
	fmt.Fprintf(&b, "Payment Deadline: %s\n", deadline.Format("2006-01-02"))
	b.WriteString("----------------\n")

	return b.String()
}
