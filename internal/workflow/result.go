package workflow

import "admission-orchestrator/internal/models"

// Transition names exposed at the operator boundary.
const (
	TransitionCheckDocuments   = "check_documents"
	TransitionShortlist        = "shortlist"
	TransitionConfirmAdmission = "confirm_admission"
	TransitionProcessLoan      = "process_loan"
)

// Outcome classifies a transition attempt.
type Outcome string

const (
	// OutcomeApplied means the application moved along a legal edge.
	OutcomeApplied Outcome = "applied"
	// OutcomeInvalid means the guard failed; state is unchanged.
	OutcomeInvalid Outcome = "invalid"
	// OutcomeDeferred means the call arrived out of order and is a valid,
	// expected no-op (loan processing before admission confirmation).
	OutcomeDeferred Outcome = "deferred"
)

// InvalidTransition identifies the guard that failed, so the caller can
// re-offer only the legal actions.
type InvalidTransition struct {
	Transition string `json:"transition"`
	Current    string `json:"current"`
	Required   string `json:"required"`
}

// Notification is an emitted event: an intent to dispatch one outbound message.
// The dispatcher applies it; transitions never perform I/O themselves.
type Notification struct {
	MessageType models.MessageType
	Details     string
	// Body, when set, is a pre-rendered deterministic artifact (fee slip) that
	// bypasses the text-generation collaborator.
	Body string
	// Snippets carry retrieved knowledge passages as generation context.
	Snippets []string
}

// Result is the value returned by every transition: the decision plus the
// events for the dispatcher to apply.
type Result struct {
	Outcome    Outcome            `json:"outcome"`
	Status     models.Status      `json:"status"`
	LoanStatus models.LoanStatus  `json:"loanStatus"`
	Details    string             `json:"details"`
	Invalid    *InvalidTransition `json:"invalid,omitempty"`
	// Notifications are internal dispatch intents, not response payload.
	Notifications []Notification `json:"-"`
}

func invalidResult(app *models.Application, transition, required string) Result {
	return Result{
		Outcome:    OutcomeInvalid,
		Status:     app.Status,
		LoanStatus: app.Loan.Status,
		Details:    app.StatusDetails,
		Invalid: &InvalidTransition{
			Transition: transition,
			Current:    string(app.Status),
			Required:   required,
		},
	}
}

// LegalTransitions derives the transition names currently allowed for app.
func LegalTransitions(app *models.Application) []string {
	var names []string
	switch app.Status {
	case models.StatusSubmitted, models.StatusDocumentsIncomplete:
		names = append(names, TransitionCheckDocuments)
	case models.StatusDocumentsComplete:
		names = append(names, TransitionShortlist)
	case models.StatusShortlisted:
		names = append(names, TransitionConfirmAdmission)
	case models.StatusAdmissionConfirmed:
		if app.Loan.Status == models.LoanPending {
			names = append(names, TransitionProcessLoan)
		}
	}
	return names
}
