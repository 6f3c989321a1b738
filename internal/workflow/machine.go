// internal/workflow/machine.go
package workflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/corpus"
	"admission-orchestrator/internal/ledger"
	"admission-orchestrator/internal/models"
)

// PolicySource resolves a named numeric rule for a course. *policy.Resolver
// satisfies it; tests supply fixed facts.
type PolicySource interface {
	Resolve(ctx context.Context, key models.RuleKey, course string) models.PolicyFact
}

// SnippetSource retrieves knowledge passages used as notification context and
// fee slip content. *corpus.Index satisfies it.
type SnippetSource interface {
	Query(ctx context.Context, text string, k int) ([]corpus.Match, error)
}

// Machine owns the application lifecycle rules. Transitions take exclusive
// access to one Application for their duration (the orchestrator holds the
// record lock) and return a Result carrying emitted events.
type Machine struct {
	policies           PolicySource
	snippets           SnippetSource
	ledger             *ledger.Ledger
	defaultLoanRequest float64
	logger             logger.Logger
}

func NewMachine(policies PolicySource, snippets SnippetSource, lgr *ledger.Ledger, defaultLoanRequest float64, log logger.Logger) *Machine {
	return &Machine{
		policies:           policies,
		snippets:           snippets,
		ledger:             lgr,
		defaultLoanRequest: defaultLoanRequest,
		logger:             log.WithFields(map[string]interface{}{"component": "state-machine"}),
	}
}

// CheckDocuments verifies the three required document slots. Re-enterable from
// DocumentsIncomplete so corrected resubmissions can be re-checked. Emits a
// notification only on the incomplete path: the complete path stays silent
// until a shortlisting decision exists.
func (m *Machine) CheckDocuments(app *models.Application) Result {
	if app.Status != models.StatusSubmitted && app.Status != models.StatusDocumentsIncomplete {
		return invalidResult(app, TransitionCheckDocuments, "Submitted or DocumentsIncomplete")
	}

	missing := app.Documents.Missing()
	if len(missing) > 0 {
		details := fmt.Sprintf("Missing: %s", strings.Join(missing, ", "))
		m.apply(app, models.StatusDocumentsIncomplete, details)
		return Result{
			Outcome:    OutcomeApplied,
			Status:     app.Status,
			LoanStatus: app.Loan.Status,
			Details:    details,
			Notifications: []Notification{{
				MessageType: models.MsgIncompleteDocuments,
				Details:     details,
			}},
		}
	}

	details := "All required documents present."
	m.apply(app, models.StatusDocumentsComplete, details)
	return Result{
		Outcome:    OutcomeApplied,
		Status:     app.Status,
		LoanStatus: app.Loan.Status,
		Details:    details,
	}
}

// Shortlist compares the grade 12 percentage against the corpus-derived
// minimum. The details always state both numbers un-rounded, for audit.
func (m *Machine) Shortlist(ctx context.Context, app *models.Application) Result {
	if app.Status != models.StatusDocumentsComplete {
		return invalidResult(app, TransitionShortlist, string(models.StatusDocumentsComplete))
	}

	fact := m.policies.Resolve(ctx, models.RuleMinPercentage, app.Course)
	if !fact.Parsed() {
		m.logger.Warn("shortlisting on fallback minimum percentage", map[string]interface{}{
			"appId":    app.ID,
			"fallback": fact.Value,
		})
	}

	required := formatNumber(fact.Value)
	scored := formatNumber(app.Grade12Percentage)
	snippets := m.retrieveSnippets(ctx, fmt.Sprintf("Eligibility criteria for %s", app.Course), 1)

	if app.Grade12Percentage >= fact.Value {
		details := fmt.Sprintf("Eligible: meets the %s%% minimum requirement with %s%%.", required, scored)
		m.apply(app, models.StatusShortlisted, details)
		return Result{
			Outcome:    OutcomeApplied,
			Status:     app.Status,
			LoanStatus: app.Loan.Status,
			Details:    details,
			Notifications: []Notification{{
				MessageType: models.MsgProvisionalOffer,
				Details:     details,
				Snippets:    snippets,
			}},
		}
	}

	details := fmt.Sprintf("Does not meet the %s%% minimum requirement (has %s%%).", required, scored)
	m.apply(app, models.StatusRejectedEligibility, details)
	return Result{
		Outcome:    OutcomeApplied,
		Status:     app.Status,
		LoanStatus: app.Loan.Status,
		Details:    details,
		Notifications: []Notification{{
			MessageType: models.MsgRejection,
			Details:     details,
			Snippets:    snippets,
		}},
	}
}

// ConfirmAdmission is operator-gated, not policy-derived. It emits the offer
// letter plus the fee slip artifact, and moves a flagged loan request to
// LoanPending so the orchestrator can chain into ProcessLoan.
func (m *Machine) ConfirmAdmission(ctx context.Context, app *models.Application) Result {
	if app.Status != models.StatusShortlisted {
		return invalidResult(app, TransitionConfirmAdmission, string(models.StatusShortlisted))
	}

	details := "Seat confirmed pending payment."
	m.apply(app, models.StatusAdmissionConfirmed, details)

	feeFact := m.policies.Resolve(ctx, models.RuleCourseFee, app.Course)
	notifications := []Notification{
		{
			MessageType: models.MsgAdmissionLetter,
			Details:     details,
		},
		m.feeSlipNotification(ctx, app, feeFact.Value, details),
	}

	if app.LoanInterest && app.Loan.Status == models.LoanPendingRequest {
		app.Loan.Status = models.LoanPending
	}

	return Result{
		Outcome:       OutcomeApplied,
		Status:        app.Status,
		LoanStatus:    app.Loan.Status,
		Details:       details,
		Notifications: notifications,
	}
}

// ProcessLoan adjudicates a pending loan request. Calls arriving out of order
// are Deferred: a valid outcome with no mutation, ledger effect, or
// notification. Decision order is fixed: policy cap first, then budget.
func (m *Machine) ProcessLoan(ctx context.Context, app *models.Application) Result {
	if app.Status != models.StatusAdmissionConfirmed || app.Loan.Status != models.LoanPending {
		return Result{
			Outcome:    OutcomeDeferred,
			Status:     app.Status,
			LoanStatus: app.Loan.Status,
			Details:    "Loan processing deferred until admission is confirmed and a loan request is pending.",
		}
	}

	requested := app.Loan.RequestedAmount
	if requested <= 0 {
		requested = m.defaultLoanRequest
		app.Loan.RequestedAmount = requested
	}

	feeFact := m.policies.Resolve(ctx, models.RuleCourseFee, app.Course)
	fracFact := m.policies.Resolve(ctx, models.RuleMaxLoanFraction, app.Course)
	if !fracFact.Parsed() {
		m.logger.Warn("loan decision on fallback max loan fraction", map[string]interface{}{
			"appId":    app.ID,
			"fallback": fracFact.Value,
		})
	}
	maxAllowed := feeFact.Value * fracFact.Value

	if requested > maxAllowed {
		details := fmt.Sprintf(
			"Loan rejected: exceeds policy cap. Requested $%.2f exceeds maximum allowed $%.2f (%s%% of fee $%.2f).",
			requested, maxAllowed, formatNumber(fracFact.Value*100), feeFact.Value,
		)
		return m.finishLoan(app, models.LoanRejected, 0, details)
	}

	if !m.ledger.TryReserve(requested) {
		details := fmt.Sprintf(
			"Loan rejected: insufficient budget. Requested $%.2f, budget remaining $%.2f.",
			requested, m.ledger.Remaining(),
		)
		return m.finishLoan(app, models.LoanRejected, 0, details)
	}

	details := fmt.Sprintf(
		"Loan approved for $%.2f. Budget remaining: $%.2f.",
		requested, m.ledger.Remaining(),
	)
	res := m.finishLoan(app, models.LoanApproved, requested, details)

	// An approved loan changes the amount due, so the fee slip is reissued
	// with the deduction applied.
	res.Notifications = append(res.Notifications,
		m.feeSlipNotification(ctx, app, feeFact.Value, "Fee slip reissued with approved loan deduction."))
	return res
}

// feeSlipNotification builds the deterministic fee slip artifact from the
// retrieved fee breakdown text and the resolved course fee.
func (m *Machine) feeSlipNotification(ctx context.Context, app *models.Application, courseFee float64, details string) Notification {
	feeText := "Fee details unavailable."
	if matches := m.retrieveSnippets(ctx, fmt.Sprintf("Fee structure for %s", app.Course), 1); len(matches) > 0 {
		feeText = matches[0]
	}
	return Notification{
		MessageType: models.MsgFeeSlip,
		Details:     details,
		Body:        FeeSlipBody(app, feeText, courseFee),
	}
}

func (m *Machine) finishLoan(app *models.Application, status models.LoanStatus, approved float64, details string) Result {
	app.Loan.Status = status
	app.Loan.ApprovedAmount = approved
	app.UpdatedAt = time.Now().UTC()

	return Result{
		Outcome:    OutcomeApplied,
		Status:     app.Status,
		LoanStatus: status,
		Details:    details,
		Notifications: []Notification{{
			MessageType: models.MsgLoanStatusUpdate,
			Details:     details,
		}},
	}
}

func (m *Machine) apply(app *models.Application, status models.Status, details string) {
	app.Status = status
	app.StatusDetails = details
	app.UpdatedAt = time.Now().UTC()
}

func (m *Machine) retrieveSnippets(ctx context.Context, query string, k int) []string {
	if m.snippets == nil {
		return nil
	}
	matches, err := m.snippets.Query(ctx, query, k)
	if err != nil {
		m.logger.Warn("snippet retrieval failed", map[string]interface{}{"error": err})
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		out = append(out, match.Text)
	}
	return out
}

// formatNumber renders audit numbers without rounding or trailing zeros.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
