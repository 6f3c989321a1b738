// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"admission-orchestrator/internal/common/errors"
	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/common/metrics"
	"admission-orchestrator/internal/common/validation"
	"admission-orchestrator/internal/ledger"
	"admission-orchestrator/internal/models"
	"admission-orchestrator/internal/notify"
	"admission-orchestrator/internal/workflow"
)

// Orchestrator owns the application store and routes every mutation through
// the state machine under the record's exclusive lock. Reads take copies so
// callers never observe a record mid-transition.
type Orchestrator struct {
	machine    *workflow.Machine
	dispatcher *notify.Dispatcher
	ledger     *ledger.Ledger
	generator  notify.Generator
	logger     logger.Logger

	mu     sync.RWMutex
	apps   map[int64]*appEntry
	nextID int64
}

// appEntry pairs one application with its own lock. Transitions on different
// applications never contend.
type appEntry struct {
	mu  sync.Mutex
	app *models.Application
}

func New(machine *workflow.Machine, dispatcher *notify.Dispatcher, lgr *ledger.Ledger, generator notify.Generator, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		machine:    machine,
		dispatcher: dispatcher,
		ledger:     lgr,
		generator:  generator,
		logger:     log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		apps:       make(map[int64]*appEntry),
	}
}

// IntakeRequest is the typed shape of a new application payload after schema
// validation has passed.
type IntakeRequest struct {
	Name              string            `json:"name"`
	Email             string            `json:"email"`
	DateOfBirth       string            `json:"dateOfBirth"`
	Gender            string            `json:"gender"`
	Address           string            `json:"address"`
	Course            string            `json:"course"`
	Grade10Percentage float64           `json:"grade10Percentage"`
	Grade12Percentage float64           `json:"grade12Percentage"`
	EntranceExam      string            `json:"entranceExam"`
	EntranceExamRank  int               `json:"entranceExamRank"`
	Documents         models.Documents  `json:"documents"`
	ParentName        string            `json:"parentName"`
	ParentPhone       string            `json:"parentPhone"`
	ParentEmail       string            `json:"parentEmail"`
	LoanInterest      bool              `json:"loanInterest"`
	LoanRequest       *LoanRequestInput `json:"loanRequest,omitempty"`
}

// LoanRequestInput is an optional loan request bundled with intake.
type LoanRequestInput struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

// Intake validates a raw payload, registers the application in Submitted
// state and dispatches the acknowledgment. Validation failures return a
// StandardError carrying the field-level problems.
func (o *Orchestrator) Intake(ctx context.Context, raw json.RawMessage) (*models.Application, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.NewIntakeValidationFailedError(fmt.Sprintf("malformed JSON: %v", err))
	}

	result, err := validation.ValidateIntake(payload)
	if err != nil {
		return nil, fmt.Errorf("validate intake: %w", err)
	}
	if !result.Valid {
		return nil, errors.NewIntakeValidationFailedError(formatValidationErrors(result.Errors))
	}

	var req IntakeRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errors.NewIntakeValidationFailedError(fmt.Sprintf("malformed payload: %v", err))
	}
	if req.EntranceExamRank > 0 && req.EntranceExam == "" {
		return nil, errors.NewIntakeValidationFailedError("entranceExamRank given without entranceExam")
	}

	now := time.Now().UTC()
	app := &models.Application{
		Name:              req.Name,
		Email:             req.Email,
		DateOfBirth:       req.DateOfBirth,
		Gender:            req.Gender,
		Address:           req.Address,
		Course:            req.Course,
		Grade10Percentage: req.Grade10Percentage,
		Grade12Percentage: req.Grade12Percentage,
		EntranceExam:      req.EntranceExam,
		EntranceExamRank:  req.EntranceExamRank,
		Documents:         req.Documents,
		ParentName:        req.ParentName,
		ParentPhone:       req.ParentPhone,
		ParentEmail:       req.ParentEmail,
		LoanInterest:      req.LoanInterest,
		Status:            models.StatusSubmitted,
		StatusDetails:     "Application received.",
		Loan:              models.Loan{Status: models.LoanNotRequested},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.LoanInterest {
		app.Loan.Status = models.LoanPendingRequest
	}
	if req.LoanRequest != nil {
		app.LoanInterest = true
		app.Loan.Status = models.LoanPendingRequest
		app.Loan.RequestedAmount = req.LoanRequest.Amount
		app.Loan.Reason = req.LoanRequest.Reason
	}

	o.mu.Lock()
	o.nextID++
	app.ID = o.nextID
	entry := &appEntry{app: app}
	o.apps[app.ID] = entry
	o.mu.Unlock()

	o.logger.Info("application registered", map[string]interface{}{
		"appId":  app.ID,
		"course": app.Course,
	})

	entry.mu.Lock()
	o.emit(ctx, entry.app, workflow.Notification{
		MessageType: models.MsgApplicationAcknowledgment,
		Details:     app.StatusDetails,
	})
	snapshot := cloneApp(entry.app)
	entry.mu.Unlock()

	return snapshot, nil
}

// Application returns a copy of one record.
func (o *Orchestrator) Application(id int64) (*models.Application, error) {
	entry, err := o.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return cloneApp(entry.app), nil
}

// Snapshot returns copies of every record ordered by ID.
func (o *Orchestrator) Snapshot() []*models.Application {
	o.mu.RLock()
	entries := make([]*appEntry, 0, len(o.apps))
	for _, e := range o.apps {
		entries = append(entries, e)
	}
	o.mu.RUnlock()

	out := make([]*models.Application, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, cloneApp(e.app))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LegalTransitions reports the transitions currently valid for a record.
func (o *Orchestrator) LegalTransitions(id int64) ([]string, error) {
	entry, err := o.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return workflow.LegalTransitions(entry.app), nil
}

// Invoke runs one named transition. Guard failures come back as a Result with
// OutcomeInvalid, not an error: the record is untouched and the caller can
// re-query LegalTransitions. Confirming an admission with a pending loan
// chains straight into loan processing under the same record lock.
func (o *Orchestrator) Invoke(ctx context.Context, id int64, name string) (workflow.Result, error) {
	entry, err := o.entry(id)
	if err != nil {
		return workflow.Result{}, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	start := time.Now()
	res, err := o.run(ctx, entry.app, name)
	if err != nil {
		return workflow.Result{}, err
	}
	metrics.TransitionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	metrics.TransitionsTotal.WithLabelValues(name, string(res.Outcome)).Inc()

	for _, event := range res.Notifications {
		o.emit(ctx, entry.app, event)
	}

	if name == workflow.TransitionConfirmAdmission &&
		res.Outcome == workflow.OutcomeApplied &&
		entry.app.Loan.Status == models.LoanPending {
		loanRes := o.machine.ProcessLoan(ctx, entry.app)
		metrics.TransitionsTotal.WithLabelValues(workflow.TransitionProcessLoan, string(loanRes.Outcome)).Inc()
		for _, event := range loanRes.Notifications {
			o.emit(ctx, entry.app, event)
		}
		res.LoanStatus = loanRes.LoanStatus
	}

	return res, nil
}

// SubmitLoanRequest records or replaces a loan request. If the admission is
// already confirmed the request is adjudicated immediately; otherwise it
// waits for confirmation.
func (o *Orchestrator) SubmitLoanRequest(ctx context.Context, id int64, amount float64, reason string) (*models.Application, error) {
	entry, err := o.entry(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	app := entry.app
	switch app.Loan.Status {
	case models.LoanApproved, models.LoanRejected:
		return nil, errors.NewInvalidTransitionError(
			"submit_loan_request", string(app.Loan.Status), "an undecided loan status")
	}

	app.LoanInterest = true
	app.Loan.RequestedAmount = amount
	app.Loan.Reason = reason
	app.UpdatedAt = time.Now().UTC()

	if app.Status == models.StatusAdmissionConfirmed {
		app.Loan.Status = models.LoanPending
		res := o.machine.ProcessLoan(ctx, app)
		metrics.TransitionsTotal.WithLabelValues(workflow.TransitionProcessLoan, string(res.Outcome)).Inc()
		for _, event := range res.Notifications {
			o.emit(ctx, app, event)
		}
	} else {
		app.Loan.Status = models.LoanPendingRequest
	}

	return cloneApp(app), nil
}

// Notifications returns the dispatch history for one application.
func (o *Orchestrator) Notifications(id int64) ([]models.NotificationRecord, error) {
	if _, err := o.entry(id); err != nil {
		return nil, err
	}
	return o.dispatcher.History(id), nil
}

// AllNotifications returns the full dispatch log.
func (o *Orchestrator) AllNotifications() []models.NotificationRecord {
	return o.dispatcher.All()
}

func (o *Orchestrator) entry(id int64) (*appEntry, error) {
	o.mu.RLock()
	entry, ok := o.apps[id]
	o.mu.RUnlock()
	if !ok {
		return nil, errors.NewApplicationNotFoundError(id)
	}
	return entry, nil
}

// run dispatches a transition by name. Caller holds the record lock.
func (o *Orchestrator) run(ctx context.Context, app *models.Application, name string) (workflow.Result, error) {
	switch name {
	case workflow.TransitionCheckDocuments:
		return o.machine.CheckDocuments(app), nil
	case workflow.TransitionShortlist:
		return o.machine.Shortlist(ctx, app), nil
	case workflow.TransitionConfirmAdmission:
		return o.machine.ConfirmAdmission(ctx, app), nil
	case workflow.TransitionProcessLoan:
		return o.machine.ProcessLoan(ctx, app), nil
	default:
		return workflow.Result{}, fmt.Errorf("unknown transition: %s", name)
	}
}

// emit dispatches one notification and notes it on the record. Caller holds
// the record lock.
func (o *Orchestrator) emit(ctx context.Context, app *models.Application, event workflow.Notification) {
	rec := o.dispatcher.Dispatch(ctx, app, event)
	app.CommunicationHistory = append(app.CommunicationHistory, models.CommunicationEntry{
		Timestamp:   rec.Timestamp,
		MessageType: rec.MessageType,
	})
}

func cloneApp(app *models.Application) *models.Application {
	out := *app
	if app.Documents.Other != nil {
		out.Documents.Other = append([]models.DocumentRef(nil), app.Documents.Other...)
	}
	if app.CommunicationHistory != nil {
		out.CommunicationHistory = append([]models.CommunicationEntry(nil), app.CommunicationHistory...)
	}
	return &out
}

func formatValidationErrors(errs []validation.ValidationError) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return out
}
