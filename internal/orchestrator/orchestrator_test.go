package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "errors"

	apperrors "admission-orchestrator/internal/common/errors"
	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/corpus"
	"admission-orchestrator/internal/ledger"
	"admission-orchestrator/internal/models"
	"admission-orchestrator/internal/notify"
	"admission-orchestrator/internal/workflow"
	"admission-orchestrator/pkg/registry"
)

type stubPolicies struct{}

func (stubPolicies) Resolve(_ context.Context, key models.RuleKey, _ string) models.PolicyFact {
	values := map[models.RuleKey]float64{
		models.RuleMinPercentage:   75,
		models.RuleMaxLoanFraction: 0.80,
		models.RuleCourseFee:       10000,
	}
	return models.PolicyFact{Key: key, Value: values[key], Confidence: models.ConfidenceParsed, SourceID: "test"}
}

type stubSnippets struct{}

func (stubSnippets) Query(_ context.Context, _ string, _ int) ([]corpus.Match, error) {
	return []corpus.Match{{Text: "Minimum 12th grade percentage: 75%", SourceID: "eligibility_criteria"}}, nil
}

func newTestOrchestrator(t *testing.T, capacity float64) *Orchestrator {
	t.Helper()
	log := logger.NewNoOpLogger()
	lgr := ledger.New(capacity)
	machine := workflow.NewMachine(stubPolicies{}, stubSnippets{}, lgr, 5000, log)
	dispatcher := notify.NewDispatcher(nil, registry.NewRegistry(), nil, time.Second, log)
	return New(machine, dispatcher, lgr, nil, log)
}

func intakePayload(overrides map[string]interface{}) json.RawMessage {
	payload := map[string]interface{}{
		"name":              "Asha Rao",
		"email":             "asha@example.com",
		"gender":            "female",
		"address":           "12 Lake Road",
		"course":            "Computer Science",
		"grade10Percentage": 85.0,
		"grade12Percentage": 80.0,
		"parentName":        "Meera Rao",
		"parentPhone":       "+91-9000000000",
		"documents": map[string]interface{}{
			"grade10Marksheet": map[string]interface{}{"filename": "g10.pdf", "size": 1024},
			"grade12Marksheet": map[string]interface{}{"filename": "g12.pdf", "size": 2048},
			"idProof":          map[string]interface{}{"filename": "id.pdf", "size": 512},
		},
	}
	for k, v := range overrides {
		if v == nil {
			delete(payload, k)
			continue
		}
		payload[k] = v
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func TestIntake(t *testing.T) {
	t.Run("registers submitted application and acknowledges", func(t *testing.T) {
		o := newTestOrchestrator(t, 100000)

		app, err := o.Intake(context.Background(), intakePayload(nil))
		require.NoError(t, err)

		assert.Equal(t, int64(1), app.ID)
		assert.Equal(t, models.StatusSubmitted, app.Status)
		assert.Equal(t, models.LoanNotRequested, app.Loan.Status)

		history, err := o.Notifications(app.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, models.MsgApplicationAcknowledgment, history[0].MessageType)
	})

	t.Run("loan interest marks a pending request", func(t *testing.T) {
		o := newTestOrchestrator(t, 100000)

		app, err := o.Intake(context.Background(), intakePayload(map[string]interface{}{
			"loanInterest": true,
			"loanRequest":  map[string]interface{}{"amount": 6000.0, "reason": "tuition"},
		}))
		require.NoError(t, err)

		assert.Equal(t, models.LoanPendingRequest, app.Loan.Status)
		assert.Equal(t, 6000.0, app.Loan.RequestedAmount)
	})

	t.Run("rejects payload missing required fields", func(t *testing.T) {
		o := newTestOrchestrator(t, 100000)

		_, err := o.Intake(context.Background(), intakePayload(map[string]interface{}{"email": nil}))
		require.Error(t, err)

		var stdErr *apperrors.StandardError
		require.True(t, stderrors.As(err, &stdErr))
		assert.Equal(t, apperrors.ErrCodeIntakeValidationFailed, stdErr.Code)
		assert.Contains(t, stdErr.Details, "email")
	})

	t.Run("rejects exam rank without exam name", func(t *testing.T) {
		o := newTestOrchestrator(t, 100000)

		_, err := o.Intake(context.Background(), intakePayload(map[string]interface{}{
			"entranceExamRank": 120,
		}))
		require.Error(t, err)

		var stdErr *apperrors.StandardError
		require.True(t, stderrors.As(err, &stdErr))
		assert.Equal(t, apperrors.ErrCodeIntakeValidationFailed, stdErr.Code)
	})

	t.Run("ids are sequential", func(t *testing.T) {
		o := newTestOrchestrator(t, 100000)
		first, err := o.Intake(context.Background(), intakePayload(nil))
		require.NoError(t, err)
		second, err := o.Intake(context.Background(), intakePayload(nil))
		require.NoError(t, err)
		assert.Equal(t, first.ID+1, second.ID)
	})
}

func TestFullAdmissionFlow(t *testing.T) {
	o := newTestOrchestrator(t, 100000)
	ctx := context.Background()

	app, err := o.Intake(ctx, intakePayload(map[string]interface{}{
		"loanInterest": true,
		"loanRequest":  map[string]interface{}{"amount": 6000.0, "reason": "tuition"},
	}))
	require.NoError(t, err)

	res, err := o.Invoke(ctx, app.ID, workflow.TransitionCheckDocuments)
	require.NoError(t, err)
	assert.Equal(t, workflow.OutcomeApplied, res.Outcome)
	assert.Equal(t, models.StatusDocumentsComplete, res.Status)

	res, err = o.Invoke(ctx, app.ID, workflow.TransitionShortlist)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShortlisted, res.Status)

	// Confirming chains loan processing for the pending request.
	res, err = o.Invoke(ctx, app.ID, workflow.TransitionConfirmAdmission)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAdmissionConfirmed, res.Status)
	assert.Equal(t, models.LoanApproved, res.LoanStatus)

	final, err := o.Application(app.ID)
	require.NoError(t, err)
	assert.Equal(t, 6000.0, final.Loan.ApprovedAmount)
	assert.Equal(t, 94000.0, o.Stats().BudgetRemaining)

	history, err := o.Notifications(app.ID)
	require.NoError(t, err)
	var types []models.MessageType
	for _, rec := range history {
		types = append(types, rec.MessageType)
	}
	assert.Equal(t, []models.MessageType{
		models.MsgApplicationAcknowledgment,
		models.MsgProvisionalOffer,
		models.MsgAdmissionLetter,
		models.MsgFeeSlip,
		models.MsgLoanStatusUpdate,
		models.MsgFeeSlip,
	}, types)

	// The second fee slip carries the approved loan deduction.
	reissued := history[len(history)-1]
	assert.Contains(t, reissued.Body, "Approved Loan Deduction: -$6000.00")
	assert.Contains(t, reissued.Body, "Amount Due: $4000.00")

	require.Len(t, final.CommunicationHistory, 6)
	for i := 1; i < len(final.CommunicationHistory); i++ {
		assert.False(t, final.CommunicationHistory[i].Timestamp.Before(final.CommunicationHistory[i-1].Timestamp))
	}
}

func TestInvokeGuards(t *testing.T) {
	o := newTestOrchestrator(t, 100000)
	ctx := context.Background()

	app, err := o.Intake(ctx, intakePayload(nil))
	require.NoError(t, err)

	t.Run("invalid transition leaves record untouched", func(t *testing.T) {
		res, err := o.Invoke(ctx, app.ID, workflow.TransitionShortlist)
		require.NoError(t, err)
		assert.Equal(t, workflow.OutcomeInvalid, res.Outcome)
		require.NotNil(t, res.Invalid)

		current, err := o.Application(app.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSubmitted, current.Status)
	})

	t.Run("unknown transition name", func(t *testing.T) {
		_, err := o.Invoke(ctx, app.ID, "fast_track")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown transition")
	})

	t.Run("unknown application", func(t *testing.T) {
		_, err := o.Invoke(ctx, 999, workflow.TransitionCheckDocuments)
		require.Error(t, err)

		var stdErr *apperrors.StandardError
		require.True(t, stderrors.As(err, &stdErr))
		assert.Equal(t, apperrors.ErrCodeApplicationNotFound, stdErr.Code)
	})

	t.Run("legal transitions track status", func(t *testing.T) {
		legal, err := o.LegalTransitions(app.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{workflow.TransitionCheckDocuments}, legal)
	})
}

func TestSubmitLoanRequest(t *testing.T) {
	ctx := context.Background()

	advanceToConfirmed := func(t *testing.T, o *Orchestrator) int64 {
		t.Helper()
		app, err := o.Intake(ctx, intakePayload(nil))
		require.NoError(t, err)
		for _, name := range []string{
			workflow.TransitionCheckDocuments,
			workflow.TransitionShortlist,
			workflow.TransitionConfirmAdmission,
		} {
			res, err := o.Invoke(ctx, app.ID, name)
			require.NoError(t, err)
			require.Equal(t, workflow.OutcomeApplied, res.Outcome)
		}
		return app.ID
	}

	t.Run("before confirmation the request waits", func(t *testing.T) {
		o := newTestOrchestrator(t, 100000)
		app, err := o.Intake(ctx, intakePayload(nil))
		require.NoError(t, err)

		updated, err := o.SubmitLoanRequest(ctx, app.ID, 4000, "tuition")
		require.NoError(t, err)
		assert.Equal(t, models.LoanPendingRequest, updated.Loan.Status)
		assert.Equal(t, 100000.0, o.Stats().BudgetRemaining)
	})

	t.Run("after confirmation the request is adjudicated immediately", func(t *testing.T) {
		o := newTestOrchestrator(t, 100000)
		id := advanceToConfirmed(t, o)

		updated, err := o.SubmitLoanRequest(ctx, id, 4000, "tuition")
		require.NoError(t, err)
		assert.Equal(t, models.LoanApproved, updated.Loan.Status)
		assert.Equal(t, 96000.0, o.Stats().BudgetRemaining)
	})

	t.Run("a decided loan cannot be resubmitted", func(t *testing.T) {
		o := newTestOrchestrator(t, 100000)
		id := advanceToConfirmed(t, o)

		_, err := o.SubmitLoanRequest(ctx, id, 4000, "tuition")
		require.NoError(t, err)

		_, err = o.SubmitLoanRequest(ctx, id, 2000, "books")
		require.Error(t, err)

		var stdErr *apperrors.StandardError
		require.True(t, stderrors.As(err, &stdErr))
		assert.Equal(t, apperrors.ErrCodeInvalidTransition, stdErr.Code)
	})
}

func TestConcurrentLoanRequestsNeverOvercommit(t *testing.T) {
	// 10000 of budget, ten confirmed applicants each asking 6000: at most
	// one reservation can succeed regardless of interleaving.
	o := newTestOrchestrator(t, 10000)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 10; i++ {
		app, err := o.Intake(ctx, intakePayload(map[string]interface{}{
			"email": fmt.Sprintf("applicant%d@example.com", i),
		}))
		require.NoError(t, err)
		for _, name := range []string{
			workflow.TransitionCheckDocuments,
			workflow.TransitionShortlist,
			workflow.TransitionConfirmAdmission,
		} {
			_, err := o.Invoke(ctx, app.ID, name)
			require.NoError(t, err)
		}
		ids = append(ids, app.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := o.SubmitLoanRequest(ctx, id, 6000, "tuition")
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	stats := o.Stats()
	assert.Equal(t, 1, stats.LoansApproved)
	assert.Equal(t, 6000.0, stats.LoansApprovedSum)
	assert.Equal(t, 4000.0, stats.BudgetRemaining)

	rejected := 0
	for _, app := range o.Snapshot() {
		if app.Loan.Status == models.LoanRejected {
			rejected++
		}
	}
	assert.Equal(t, 9, rejected)
}

func TestStatsAndDirectorQueries(t *testing.T) {
	o := newTestOrchestrator(t, 100000)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		app, err := o.Intake(ctx, intakePayload(map[string]interface{}{
			"email": fmt.Sprintf("applicant%d@example.com", i),
		}))
		require.NoError(t, err)
		_, err = o.Invoke(ctx, app.ID, workflow.TransitionCheckDocuments)
		require.NoError(t, err)
		_, err = o.Invoke(ctx, app.ID, workflow.TransitionShortlist)
		require.NoError(t, err)
	}

	stats := o.Stats()
	assert.Equal(t, 3, stats.TotalApplications)
	assert.Equal(t, 3, stats.Shortlisted)
	assert.Equal(t, 100000.0, stats.BudgetRemaining)

	tests := []struct {
		question string
		want     string
	}{
		{"How many applications do we have?", "3 applications in total"},
		{"Who has been shortlisted?", "3 applications are currently shortlisted"},
		{"What is the loan budget looking like?", "$100000.00 remaining"},
		{"List approved loans", "No loans have been approved"},
		{"Give me a status overview", "Shortlisted: 3"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Contains(t, o.AnswerQuery(ctx, tt.question), tt.want)
		})
	}
}
