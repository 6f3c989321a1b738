// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/corpus"
	"admission-orchestrator/internal/ledger"
	"admission-orchestrator/internal/models"
	"admission-orchestrator/internal/notify"
	"admission-orchestrator/internal/orchestrator"
	"admission-orchestrator/internal/policy"
	"admission-orchestrator/internal/server"
	"admission-orchestrator/internal/workflow"
	"admission-orchestrator/pkg/registry"
)

// startStack wires the whole service in-process: the real corpus documents
// from data/, keyword-fallback retrieval (no embedding backend in CI), the
// real extractor, ledger and dispatcher. Only text generation is absent, so
// notification bodies use the template path.
func startStack(t *testing.T, capacity float64) *httptest.Server {
	t.Helper()
	log := logger.NewNoOpLogger()

	docs, err := corpus.LoadDir("../../data")
	require.NoError(t, err)
	require.NotEmpty(t, docs, "sample corpus documents must ship with the repo")

	index, err := corpus.Load(context.Background(), docs, nil, corpus.Options{
		ChunkSize:    500,
		ChunkOverlap: 50,
		QueryTimeout: time.Second,
	}, log)
	require.NoError(t, err)

	extractor := policy.NewExtractor(policy.DefaultFallbacks(), log)
	resolver := policy.NewResolver(index, extractor, nil, log)

	budget := ledger.New(capacity)
	machine := workflow.NewMachine(resolver, index, budget, 5000, log)
	dispatcher := notify.NewDispatcher(nil, registry.NewRegistry(), nil, time.Second, log)
	orch := orchestrator.New(machine, dispatcher, budget, nil, log)

	ts := httptest.NewServer(server.New(orch, nil, log).Router())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func intakeBody(email string, grade12 float64, withDocs bool) map[string]interface{} {
	payload := map[string]interface{}{
		"name":              "Asha Rao",
		"email":             email,
		"gender":            "female",
		"address":           "12 Lake Road",
		"course":            "Computer Science",
		"grade10Percentage": 85.0,
		"grade12Percentage": grade12,
		"parentName":        "Meera Rao",
		"parentPhone":       "+91-9000000000",
	}
	if withDocs {
		payload["documents"] = map[string]interface{}{
			"grade10Marksheet": map[string]interface{}{"filename": "g10.pdf", "size": 1024},
			"grade12Marksheet": map[string]interface{}{"filename": "g12.pdf", "size": 2048},
			"idProof":          map[string]interface{}{"filename": "id.pdf", "size": 512},
		}
	}
	return payload
}

func TestEndToEndAdmissionLifecycle(t *testing.T) {
	ts := startStack(t, 100000)

	// Intake with complete documents and a bundled loan request.
	body := intakeBody("asha@example.com", 80, true)
	body["loanInterest"] = true
	body["loanRequest"] = map[string]interface{}{"amount": 6000.0, "reason": "tuition"}

	resp := post(t, ts.URL+"/api/applications", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var app models.Application
	decode(t, resp, &app)
	base := fmt.Sprintf("%s/api/applications/%d", ts.URL, app.ID)

	// Documents are complete; eligibility is decided against the real
	// eligibility_criteria.txt (75% minimum, applicant has 80%).
	for _, step := range []struct {
		transition string
		wantStatus models.Status
	}{
		{"check_documents", models.StatusDocumentsComplete},
		{"shortlist", models.StatusShortlisted},
		{"confirm_admission", models.StatusAdmissionConfirmed},
	} {
		resp := post(t, base+"/transitions/"+step.transition, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, step.transition)
		var res workflow.Result
		decode(t, resp, &res)
		assert.Equal(t, workflow.OutcomeApplied, res.Outcome)
		assert.Equal(t, step.wantStatus, res.Status)
	}

	// Confirmation chained into loan processing: 6000 is within the 80%
	// coverage cap of the $10000 fee and within budget.
	var final models.Application
	resp, err := http.Get(base)
	require.NoError(t, err)
	decode(t, resp, &final)
	assert.Equal(t, models.LoanApproved, final.Loan.Status)
	assert.Equal(t, 6000.0, final.Loan.ApprovedAmount)

	// The audit log holds the full conversation, fee slip included.
	resp, err = http.Get(base + "/notifications")
	require.NoError(t, err)
	var history []models.NotificationRecord
	decode(t, resp, &history)

	var types []models.MessageType
	var feeSlips []string
	for _, rec := range history {
		types = append(types, rec.MessageType)
		if rec.MessageType == models.MsgFeeSlip {
			feeSlips = append(feeSlips, rec.Body)
		}
	}
	assert.Equal(t, []models.MessageType{
		models.MsgApplicationAcknowledgment,
		models.MsgProvisionalOffer,
		models.MsgAdmissionLetter,
		models.MsgFeeSlip,
		models.MsgLoanStatusUpdate,
		models.MsgFeeSlip,
	}, types)

	// The first slip is issued with confirmation, the second reissued after
	// the loan approval with the deduction applied.
	require.Len(t, feeSlips, 2)
	assert.Contains(t, feeSlips[0], "--- Fee Slip ---")
	assert.Contains(t, feeSlips[0], "Amount Due: $10000.00")
	assert.Contains(t, feeSlips[1], "Approved Loan Deduction: -$6000.00")
	assert.Contains(t, feeSlips[1], "Amount Due: $4000.00")

	// Budget reflects the approval.
	var stats orchestrator.Stats
	resp, err = http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	decode(t, resp, &stats)
	assert.Equal(t, 94000.0, stats.BudgetRemaining)
	assert.Equal(t, 1, stats.LoansApproved)
}

func TestEndToEndIncompleteDocumentsAndRejection(t *testing.T) {
	ts := startStack(t, 100000)

	// No documents attached: the check parks the application.
	resp := post(t, ts.URL+"/api/applications", intakeBody("bela@example.com", 70, false))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var app models.Application
	decode(t, resp, &app)
	base := fmt.Sprintf("%s/api/applications/%d", ts.URL, app.ID)

	resp = post(t, base+"/transitions/check_documents", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res workflow.Result
	decode(t, resp, &res)
	assert.Equal(t, models.StatusDocumentsIncomplete, res.Status)
	assert.Contains(t, res.Details, "Class X Marksheet")

	// Shortlisting from here is a guard failure, not an error.
	resp = post(t, base+"/transitions/shortlist", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// After re-checking with documents in place, the 70% applicant is
	// rejected against the 75% minimum parsed from the corpus.
	update := intakeBody("bela2@example.com", 70, true)
	resp = post(t, ts.URL+"/api/applications", update)
	var second models.Application
	decode(t, resp, &second)
	base2 := fmt.Sprintf("%s/api/applications/%d", ts.URL, second.ID)

	resp = post(t, base2+"/transitions/check_documents", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = post(t, base2+"/transitions/shortlist", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &res)
	assert.Equal(t, models.StatusRejectedEligibility, res.Status)
	assert.Contains(t, res.Details, "75")
	assert.Contains(t, res.Details, "70")
}

func TestEndToEndBudgetContention(t *testing.T) {
	ts := startStack(t, 10000)

	confirm := func(email string) string {
		resp := post(t, ts.URL+"/api/applications", intakeBody(email, 80, true))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var app models.Application
		decode(t, resp, &app)
		base := fmt.Sprintf("%s/api/applications/%d", ts.URL, app.ID)
		for _, name := range []string{"check_documents", "shortlist", "confirm_admission"} {
			resp := post(t, base+"/transitions/"+name, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			resp.Body.Close()
		}
		return base
	}

	first := confirm("one@example.com")
	second := confirm("two@example.com")

	// 6000 + 6000 against a 10000 budget: first wins, second is rejected
	// for insufficient budget, never partially approved.
	resp := post(t, first+"/loan-request", map[string]interface{}{"amount": 6000.0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var a models.Application
	decode(t, resp, &a)
	assert.Equal(t, models.LoanApproved, a.Loan.Status)

	resp = post(t, second+"/loan-request", map[string]interface{}{"amount": 6000.0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var b models.Application
	decode(t, resp, &b)
	assert.Equal(t, models.LoanRejected, b.Loan.Status)
	assert.Equal(t, 0.0, b.Loan.ApprovedAmount)

	var stats orchestrator.Stats
	r, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	decode(t, r, &stats)
	assert.Equal(t, 4000.0, stats.BudgetRemaining)
}
